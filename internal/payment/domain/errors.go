package domain

import "errors"

var (
	ErrProviderNotFound = errors.New("payment_provider_not_found")
	ErrInvalidConfig    = errors.New("invalid_payment_config")
	ErrInvalidOrder     = errors.New("invalid_payment_order")

	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")

	ErrGatewayUnavailable  = errors.New("payment_gateway_unavailable")
	ErrGatewayRejected     = errors.New("payment_gateway_rejected")
	ErrTransactionNotFound = errors.New("payment_transaction_not_found")
)

// IsGatewayError reports whether err came from talking to the gateway, as
// opposed to an untrusted or malformed notification.
func IsGatewayError(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable) || errors.Is(err, ErrGatewayRejected)
}

// IsInvalidNotification reports whether a notification must be rejected
// without touching storage.
func IsInvalidNotification(err error) bool {
	return errors.Is(err, ErrInvalidSignature) || errors.Is(err, ErrInvalidPayload)
}
