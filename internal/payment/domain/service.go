package domain

import "context"

// NotificationLog keeps an append-only audit trail of accepted gateway
// notifications.
type NotificationLog interface {
	Record(ctx context.Context, notification *Notification, resolvedStatus string, applied bool) (bool, error)
	List(ctx context.Context, orderID string) ([]NotificationRecord, error)
}
