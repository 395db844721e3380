package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	// InsertNotification appends a record; it returns false when the same
	// provider, order and transaction status was already recorded.
	InsertNotification(ctx context.Context, db *gorm.DB, record *NotificationRecord) (bool, error)
	ListNotifications(ctx context.Context, db *gorm.DB, orderID string) ([]NotificationRecord, error)
}
