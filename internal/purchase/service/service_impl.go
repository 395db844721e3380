package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	catalogdomain "github.com/smallbiznis/fotoyou/internal/catalog/domain"
	"github.com/smallbiznis/fotoyou/internal/config"
	entitlementdomain "github.com/smallbiznis/fotoyou/internal/entitlement/domain"
	obslogger "github.com/smallbiznis/fotoyou/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/fotoyou/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/fotoyou/internal/payment/domain"
	"github.com/smallbiznis/fotoyou/internal/purchase/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	outcomeOK           = "ok"
	outcomeRejected     = "rejected"
	outcomeConflict     = "conflict"
	outcomeGatewayError = "gateway_error"
	outcomeError        = "error"
	outcomeApplied      = "applied"
	outcomeNoop         = "noop"
	outcomePending      = "pending"
	outcomeUnknownOrder = "unknown_order"
)

type Params struct {
	fx.In

	Cfg             config.Config
	Log             *zap.Logger
	Store           entitlementdomain.Store
	Gateway         paymentdomain.Gateway
	Catalog         catalogdomain.Service         `optional:"true"`
	NotificationLog paymentdomain.NotificationLog `optional:"true"`
	Policy          *config.PurchasePolicyHolder  `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics           `optional:"true"`
}

type Service struct {
	log             *zap.Logger
	store           entitlementdomain.Store
	gateway         paymentdomain.Gateway
	catalog         catalogdomain.Service
	notificationLog paymentdomain.NotificationLog
	policy          *config.PurchasePolicyHolder
	obsMetrics      *obsmetrics.Metrics
	notificationURL string
}

func NewService(p Params) domain.Service {
	return &Service{
		log:             p.Log.Named("purchase.service"),
		store:           p.Store,
		gateway:         p.Gateway,
		catalog:         p.Catalog,
		notificationLog: p.NotificationLog,
		policy:          p.Policy,
		obsMetrics:      p.ObsMetrics,
		notificationURL: strings.TrimSpace(p.Cfg.Payment.NotificationURL),
	}
}

func (s *Service) InitiatePurchase(ctx context.Context, req domain.InitiateRequest) (*domain.InitiateResponse, error) {
	req.Buyer.UserID = strings.TrimSpace(req.Buyer.UserID)
	req.StoryID = strings.TrimSpace(req.StoryID)
	req.StoryName = strings.TrimSpace(req.StoryName)
	if req.Buyer.UserID == "" {
		return nil, domain.ErrInvalidBuyer
	}
	if req.StoryID == "" {
		return nil, domain.ErrInvalidStory
	}
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	policy := s.policy.Get()
	if policy.MaxAmount > 0 && req.Amount > policy.MaxAmount {
		return nil, domain.ErrAmountTooHigh
	}

	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("story_id", req.StoryID),
		zap.Int64("amount", req.Amount),
	)

	if policy.VerifyAmount && s.catalog != nil {
		story, err := s.catalog.LookupStory(ctx, req.StoryID)
		if err != nil {
			s.recordInitiated(ctx, outcomeError)
			return nil, err
		}
		if story.Price != nil && *story.Price != req.Amount {
			log.Warn("purchase amount does not match catalog price", zap.Int64("catalog_price", *story.Price))
			s.recordInitiated(ctx, outcomeRejected)
			return nil, domain.ErrAmountMismatch
		}
		if story.Name != "" {
			req.StoryName = story.Name
		}
	}
	if req.StoryName == "" {
		req.StoryName = req.StoryID
	}

	purchase, err := s.store.CreatePending(ctx, entitlementdomain.CreatePendingRequest{
		UserID:    req.Buyer.UserID,
		StoryID:   req.StoryID,
		StoryName: req.StoryName,
		Amount:    req.Amount,
	})
	if err != nil {
		if errors.Is(err, entitlementdomain.ErrActivePurchaseExists) {
			s.recordInitiated(ctx, outcomeConflict)
			return nil, domain.ErrAlreadyInitiated
		}
		s.recordInitiated(ctx, outcomeError)
		return nil, err
	}
	log = log.With(zap.String("order_id", purchase.OrderID))

	tx, err := s.gateway.CreateTransactionToken(ctx, paymentdomain.Order{
		OrderID:         purchase.OrderID,
		Amount:          purchase.Amount,
		ItemID:          purchase.StoryID,
		ItemName:        fmt.Sprintf(policy.ItemNameFormat, purchase.StoryName),
		BuyerName:       strings.TrimSpace(req.Buyer.Name),
		BuyerEmail:      strings.TrimSpace(req.Buyer.Email),
		NotificationURL: s.notificationURL,
	})
	if err != nil {
		// The PENDING row stays; reconciliation resolves it.
		log.Error("gateway rejected transaction token request", zap.Error(err))
		s.recordInitiated(ctx, outcomeGatewayError)
		return nil, err
	}

	log.Info("purchase initiated")
	s.recordInitiated(ctx, outcomeOK)
	return &domain.InitiateResponse{
		OrderID:     purchase.OrderID,
		Token:       tx.Token,
		RedirectURL: tx.RedirectURL,
	}, nil
}

func (s *Service) HandleNotification(ctx context.Context, provider string, payload []byte, headers http.Header) (*domain.NotificationResult, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider != "" && provider != s.gateway.Provider() {
		return nil, paymentdomain.ErrProviderNotFound
	}
	provider = s.gateway.Provider()

	notification, err := s.gateway.DecodeNotification(ctx, payload, headers)
	if err != nil {
		obslogger.WithContext(ctx, s.log).Warn("payment notification rejected",
			zap.String("provider", provider),
			zap.Error(err),
		)
		s.obsMetrics.RecordPaymentNotification(ctx, provider, "", outcomeRejected)
		return nil, err
	}
	if notification.Provider == "" {
		notification.Provider = provider
	}
	return s.ApplyGatewayStatus(ctx, notification)
}

func (s *Service) ApplyGatewayStatus(ctx context.Context, notification *paymentdomain.Notification) (*domain.NotificationResult, error) {
	if notification == nil || strings.TrimSpace(notification.OrderID) == "" {
		return nil, paymentdomain.ErrInvalidPayload
	}

	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("provider", notification.Provider),
		zap.String("order_id", notification.OrderID),
		zap.String("transaction_status", notification.TransactionStatus),
		zap.String("fraud_status", notification.FraudStatus),
	)

	result := &domain.NotificationResult{
		Provider:          notification.Provider,
		OrderID:           notification.OrderID,
		TransactionStatus: notification.TransactionStatus,
	}

	status, terminal := domain.ResolveStatus(notification.TransactionStatus, notification.FraudStatus)
	if terminal {
		resolved, err := s.store.Resolve(ctx, notification.OrderID, status)
		if err != nil {
			s.recordNotification(ctx, notification, failureOutcome(err))
			if errors.Is(err, entitlementdomain.ErrPurchaseNotFound) {
				log.Warn("payment notification for unknown order")
			}
			return nil, err
		}
		result.Resolved = status
		result.Applied = resolved.Applied
		result.Status = resolved.Purchase.Status
	} else {
		// Non-terminal reports still have to name an order we issued.
		purchase, err := s.store.FindByOrderID(ctx, notification.OrderID)
		if err != nil {
			s.recordNotification(ctx, notification, failureOutcome(err))
			if errors.Is(err, entitlementdomain.ErrPurchaseNotFound) {
				log.Warn("payment notification for unknown order")
			}
			return nil, err
		}
		result.Status = purchase.Status
	}

	s.appendAuditLog(ctx, log, notification, result)
	s.recordNotification(ctx, notification, resultOutcome(result))

	log.Info("payment notification processed",
		zap.String("resolved", string(result.Resolved)),
		zap.Bool("applied", result.Applied),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

func (s *Service) ListPurchases(ctx context.Context, userID string) ([]entitlementdomain.Purchase, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidBuyer
	}
	return s.store.ListByUser(ctx, userID)
}

func (s *Service) GetPurchase(ctx context.Context, userID, orderID string) (*entitlementdomain.Purchase, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidBuyer
	}
	purchase, err := s.store.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if purchase.UserID != userID {
		return nil, entitlementdomain.ErrPurchaseNotFound
	}
	return purchase, nil
}

func (s *Service) appendAuditLog(ctx context.Context, log *zap.Logger, notification *paymentdomain.Notification, result *domain.NotificationResult) {
	if s.notificationLog == nil {
		return
	}
	if _, err := s.notificationLog.Record(ctx, notification, string(result.Resolved), result.Applied); err != nil {
		log.Warn("failed to append payment notification log", zap.Error(err))
	}
}

func (s *Service) recordInitiated(ctx context.Context, outcome string) {
	s.obsMetrics.RecordPurchaseInitiated(ctx, s.gateway.Provider(), outcome)
}

func (s *Service) recordNotification(ctx context.Context, notification *paymentdomain.Notification, outcome string) {
	s.obsMetrics.RecordPaymentNotification(ctx, notification.Provider, notification.TransactionStatus, outcome)
}

func failureOutcome(err error) string {
	if errors.Is(err, entitlementdomain.ErrPurchaseNotFound) {
		return outcomeUnknownOrder
	}
	return outcomeError
}

func resultOutcome(result *domain.NotificationResult) string {
	switch {
	case result.Applied:
		return outcomeApplied
	case result.Resolved != "":
		return outcomeNoop
	default:
		return outcomePending
	}
}
