package domain

import (
	"context"
	"net/http"

	entitlementdomain "github.com/smallbiznis/fotoyou/internal/entitlement/domain"
	paymentdomain "github.com/smallbiznis/fotoyou/internal/payment/domain"
)

// Service owns the purchase lifecycle from initiation to gateway resolution.
type Service interface {
	// InitiatePurchase records a PENDING purchase and asks the gateway for a
	// transaction token. A gateway failure leaves the PENDING record in place.
	InitiatePurchase(ctx context.Context, req InitiateRequest) (*InitiateResponse, error)
	// HandleNotification authenticates a gateway callback and applies it.
	// An empty provider selects the default gateway.
	HandleNotification(ctx context.Context, provider string, payload []byte, headers http.Header) (*NotificationResult, error)
	// ApplyGatewayStatus runs the status state machine for a report that has
	// already been authenticated.
	ApplyGatewayStatus(ctx context.Context, notification *paymentdomain.Notification) (*NotificationResult, error)

	ListPurchases(ctx context.Context, userID string) ([]entitlementdomain.Purchase, error)
	// GetPurchase returns ErrPurchaseNotFound for orders the user does not own.
	GetPurchase(ctx context.Context, userID, orderID string) (*entitlementdomain.Purchase, error)
}
