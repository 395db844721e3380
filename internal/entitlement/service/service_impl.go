package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fotoyou/internal/clock"
	"github.com/smallbiznis/fotoyou/internal/config"
	"github.com/smallbiznis/fotoyou/internal/entitlement/domain"
	obslogger "github.com/smallbiznis/fotoyou/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/fotoyou/internal/observability/metrics"
	"github.com/smallbiznis/fotoyou/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultHistoryLimit = 100
	maxStatusBatch      = 500
	maxOrderIDAttempts  = 3
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Policy     *config.PurchasePolicyHolder `optional:"true"`
	ObsMetrics *obsmetrics.Metrics          `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	policy     *config.PurchasePolicyHolder
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Store {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("entitlement.store"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		policy:     p.Policy,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) CreatePending(ctx context.Context, req domain.CreatePendingRequest) (*domain.Purchase, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.StoryID = strings.TrimSpace(req.StoryID)
	req.StoryName = strings.TrimSpace(req.StoryName)
	if req.UserID == "" {
		return nil, domain.ErrInvalidUser
	}
	if req.StoryID == "" {
		return nil, domain.ErrInvalidStory
	}
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	now := s.clock.Now().UTC()
	purchase := &domain.Purchase{
		UserID:    req.UserID,
		StoryID:   req.StoryID,
		StoryName: req.StoryName,
		Amount:    req.Amount,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var err error
	for attempt := 0; attempt < maxOrderIDAttempts; attempt++ {
		purchase.ID = s.genID.Generate()
		purchase.OrderID = s.newOrderID(req.StoryID, now.UnixMilli()+int64(attempt))

		err = s.repo.Insert(ctx, s.db, purchase)
		if err == nil {
			return purchase, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return nil, fmt.Errorf("insert purchase: %w", err)
		}

		active, findErr := s.repo.FindActive(ctx, s.db, req.UserID, req.StoryID)
		if findErr != nil {
			return nil, fmt.Errorf("find active purchase: %w", findErr)
		}
		if active != nil {
			return nil, domain.ErrActivePurchaseExists
		}
		// Another buyer took the same order id in this millisecond.
		obslogger.WithContext(ctx, s.log).Warn("order id collision, retrying",
			zap.String("order_id", purchase.OrderID),
			zap.Int("attempt", attempt+1),
		)
	}
	return nil, fmt.Errorf("insert purchase: %w", err)
}

func (s *Service) Resolve(ctx context.Context, orderID string, status domain.Status) (*domain.ResolveResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, domain.ErrInvalidOrderID
	}
	if !status.IsTerminal() {
		return nil, domain.ErrInvalidStatus
	}

	now := s.clock.Now().UTC()
	affected, err := s.repo.UpdateStatusIfPending(ctx, s.db, orderID, status, now)
	if err != nil {
		return nil, fmt.Errorf("resolve purchase: %w", err)
	}

	purchase, err := s.repo.FindByOrderID(ctx, s.db, orderID)
	if err != nil {
		return nil, fmt.Errorf("load purchase: %w", err)
	}
	if purchase == nil {
		return nil, domain.ErrPurchaseNotFound
	}

	applied := affected > 0
	s.obsMetrics.RecordEntitlementResolved(ctx, string(status), applied)
	if !applied {
		obslogger.WithContext(ctx, s.log).Info("purchase already resolved",
			zap.String("order_id", orderID),
			zap.String("requested_status", string(status)),
			zap.String("current_status", string(purchase.Status)),
		)
	}

	return &domain.ResolveResult{Purchase: purchase, Applied: applied}, nil
}

func (s *Service) ListPaidStoryIDs(ctx context.Context, userID string, storyIDs []string) (map[string]struct{}, error) {
	paid := make(map[string]struct{})
	userID = strings.TrimSpace(userID)
	if userID == "" || len(storyIDs) == 0 {
		return paid, nil
	}

	unique := dedupe(storyIDs)
	if len(unique) == 0 {
		return paid, nil
	}
	ids, err := s.repo.ListPaidStoryIDs(ctx, s.db, userID, unique)
	if err != nil {
		return nil, fmt.Errorf("list paid stories: %w", err)
	}
	for _, id := range ids {
		paid[id] = struct{}{}
	}
	return paid, nil
}

func (s *Service) HasPaid(ctx context.Context, userID, storyID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	storyID = strings.TrimSpace(storyID)
	if userID == "" || storyID == "" {
		return false, nil
	}
	ok, err := s.repo.ExistsPaid(ctx, s.db, userID, storyID)
	if err != nil {
		return false, fmt.Errorf("check paid story: %w", err)
	}
	return ok, nil
}

func (s *Service) FindByOrderID(ctx context.Context, orderID string) (*domain.Purchase, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, domain.ErrInvalidOrderID
	}
	purchase, err := s.repo.FindByOrderID(ctx, s.db, orderID)
	if err != nil {
		return nil, fmt.Errorf("load purchase: %w", err)
	}
	if purchase == nil {
		return nil, domain.ErrPurchaseNotFound
	}
	return purchase, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]domain.Purchase, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	items, err := s.repo.ListByUser(ctx, s.db, userID, defaultHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return items, nil
}

func (s *Service) ListByStatus(ctx context.Context, req domain.ListByStatusRequest) ([]domain.Purchase, error) {
	status := req.Status
	if status == "" {
		status = domain.StatusPending
	}
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	limit := req.Limit
	if limit <= 0 || limit > maxStatusBatch {
		limit = maxStatusBatch
	}
	before := req.CreatedBefore
	if before.IsZero() {
		before = s.clock.Now().UTC()
	}
	items, err := s.repo.ListByStatus(ctx, s.db, status, before.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list purchases by status: %w", err)
	}
	return items, nil
}

// newOrderID builds <prefix>-<storyId>-<unixMillis>.
func (s *Service) newOrderID(storyID string, unixMilli int64) string {
	return fmt.Sprintf("%s-%s-%d", s.policy.Get().OrderPrefix, storyID, unixMilli)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
