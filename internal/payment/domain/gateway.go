package domain

import (
	"context"
	"net/http"
)

//go:generate mockgen -source=gateway.go -destination=mocks/gateway.go -package=mocks

// Gateway is the boundary to an external payment provider.
type Gateway interface {
	Provider() string
	// CreateTransactionToken registers the order with the provider. Transport
	// failures surface as ErrGatewayUnavailable and provider-side validation
	// failures as ErrGatewayRejected; neither is retried.
	CreateTransactionToken(ctx context.Context, order Order) (*Transaction, error)
	// DecodeNotification authenticates a status report and extracts the
	// fields needed for status mapping. Returns ErrInvalidSignature or
	// ErrInvalidPayload for payloads that must be rejected.
	DecodeNotification(ctx context.Context, payload []byte, headers http.Header) (*Notification, error)
	// TransactionStatus asks the provider for the current state of an order.
	// Returns ErrTransactionNotFound when the provider has never seen it.
	TransactionStatus(ctx context.Context, orderID string) (*Notification, error)
}

type AdapterConfig struct {
	Config     map[string]any
	HTTPClient *http.Client
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (Gateway, error)
}
