package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fotoyou/internal/clock"
	obslogger "github.com/smallbiznis/fotoyou/internal/observability/logger"
	"github.com/smallbiznis/fotoyou/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.NotificationLog {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("payment.notification_log"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Record appends the notification. A redelivery of the same transaction status
// for the same order is dropped and reported as false.
func (s *Service) Record(ctx context.Context, notification *domain.Notification, resolvedStatus string, applied bool) (bool, error) {
	if notification == nil || strings.TrimSpace(notification.OrderID) == "" {
		return false, domain.ErrInvalidPayload
	}

	payload := datatypes.JSON(`{}`)
	switch {
	case len(notification.Raw) > 0 && json.Valid(notification.Raw):
		payload = datatypes.JSON(notification.Raw)
	case len(notification.Raw) > 0:
		// Form-encoded or truncated bodies are kept verbatim under "raw".
		wrapped, err := json.Marshal(map[string]string{"raw": string(notification.Raw)})
		if err == nil {
			payload = datatypes.JSON(wrapped)
		}
	}

	record := &domain.NotificationRecord{
		ID:                s.genID.Generate(),
		Provider:          notification.Provider,
		OrderID:           notification.OrderID,
		TransactionID:     notification.TransactionID,
		TransactionStatus: notification.TransactionStatus,
		FraudStatus:       notification.FraudStatus,
		ResolvedStatus:    resolvedStatus,
		Applied:           applied,
		Payload:           payload,
		ReceivedAt:        s.clock.Now().UTC(),
	}

	inserted, err := s.repo.InsertNotification(ctx, s.db, record)
	if err != nil {
		return false, fmt.Errorf("insert payment notification: %w", err)
	}
	if !inserted {
		obslogger.WithContext(ctx, s.log).Debug("duplicate payment notification",
			zap.String("provider", record.Provider),
			zap.String("order_id", record.OrderID),
			zap.String("transaction_status", record.TransactionStatus),
		)
	}
	return inserted, nil
}

func (s *Service) List(ctx context.Context, orderID string) ([]domain.NotificationRecord, error) {
	items, err := s.repo.ListNotifications(ctx, s.db, strings.TrimSpace(orderID))
	if err != nil {
		return nil, fmt.Errorf("list payment notifications: %w", err)
	}
	return items, nil
}
