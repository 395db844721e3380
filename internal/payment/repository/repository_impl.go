package repository

import (
	"context"

	"github.com/smallbiznis/fotoyou/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertNotification(ctx context.Context, db *gorm.DB, record *domain.NotificationRecord) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payment_notifications (
			id, provider, order_id, transaction_id, transaction_status, fraud_status,
			resolved_status, applied, payload, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, order_id, transaction_status) DO NOTHING`,
		record.ID,
		record.Provider,
		record.OrderID,
		record.TransactionID,
		record.TransactionStatus,
		record.FraudStatus,
		record.ResolvedStatus,
		record.Applied,
		record.Payload,
		record.ReceivedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListNotifications(ctx context.Context, db *gorm.DB, orderID string) ([]domain.NotificationRecord, error) {
	var items []domain.NotificationRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, order_id, transaction_id, transaction_status, fraud_status,
			resolved_status, applied, payload, received_at
		 FROM payment_notifications
		 WHERE order_id = ?
		 ORDER BY received_at ASC, id ASC`,
		orderID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
