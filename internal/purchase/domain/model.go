package domain

import (
	"strings"

	entitlementdomain "github.com/smallbiznis/fotoyou/internal/entitlement/domain"
)

// Buyer is the authenticated caller paying for a story.
type Buyer struct {
	UserID string
	Name   string
	Email  string
}

type InitiateRequest struct {
	Buyer     Buyer
	StoryID   string
	StoryName string
	Amount    int64
}

type InitiateResponse struct {
	OrderID     string `json:"order_id"`
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// NotificationResult describes what a gateway status report did. Resolved is
// empty when the reported status leaves the purchase PENDING.
type NotificationResult struct {
	Provider          string                   `json:"provider"`
	OrderID           string                   `json:"order_id"`
	TransactionStatus string                   `json:"transaction_status"`
	Resolved          entitlementdomain.Status `json:"resolved,omitempty"`
	Applied           bool                     `json:"applied"`
	Status            entitlementdomain.Status `json:"status"`
}

// ResolveStatus maps a gateway transaction status to a terminal purchase
// status. ok is false when the purchase should stay PENDING.
func ResolveStatus(transactionStatus, fraudStatus string) (entitlementdomain.Status, bool) {
	switch strings.ToLower(strings.TrimSpace(transactionStatus)) {
	case "capture", "settlement":
		if strings.ToLower(strings.TrimSpace(fraudStatus)) == "accept" {
			return entitlementdomain.StatusSuccess, true
		}
		return "", false
	case "cancel", "deny", "expire":
		return entitlementdomain.StatusFailed, true
	default:
		return "", false
	}
}
