package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/fotoyou/internal/cache"
	"github.com/smallbiznis/fotoyou/internal/clock"
	entitlementdomain "github.com/smallbiznis/fotoyou/internal/entitlement/domain"
	obsmetrics "github.com/smallbiznis/fotoyou/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/fotoyou/internal/payment/domain"
	purchasedomain "github.com/smallbiznis/fotoyou/internal/purchase/domain"
	"github.com/smallbiznis/fotoyou/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const lockKey = "fotoyou:reconcile:purchases"

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Store     entitlementdomain.Store
	Gateway   paymentdomain.Gateway
	Purchases purchasedomain.Service
	Locker    *cache.Locker                `optional:"true"`
	Metrics   *obsmetrics.ReconcileMetrics `optional:"true"`
	Config    Config                       `optional:"true"`
}

// Reconciler asks the gateway about purchases that stayed PENDING because a
// notification never arrived, and applies the answer.
type Reconciler struct {
	log       *zap.Logger
	cfg       Config
	clock     clock.Clock
	store     entitlementdomain.Store
	gateway   paymentdomain.Gateway
	purchases purchasedomain.Service
	locker    *cache.Locker
	metrics   *obsmetrics.ReconcileMetrics
}

// OrderResult is the outcome of reconciling a single purchase.
type OrderResult struct {
	OrderID           string                   `json:"order_id"`
	Outcome           string                   `json:"outcome"`
	TransactionStatus string                   `json:"transaction_status,omitempty"`
	Status            entitlementdomain.Status `json:"status"`
	Applied           bool                     `json:"applied"`
}

func New(p Params) (*Reconciler, error) {
	if p.Log == nil || p.Clock == nil || p.Store == nil || p.Gateway == nil || p.Purchases == nil {
		return nil, ErrInvalidConfig
	}
	return &Reconciler{
		log:       p.Log.Named("reconciler").With(zap.String("component", "reconciler")),
		cfg:       p.Config.withDefaults(),
		clock:     p.Clock,
		store:     p.Store,
		gateway:   p.Gateway,
		purchases: p.Purchases,
		locker:    p.Locker,
		metrics:   p.Metrics,
	}, nil
}

// RunOnce sweeps one batch of stale PENDING purchases. Without a lock client
// every replica sweeps; with one, replicas that lose the lock skip the run.
func (r *Reconciler) RunOnce(parent context.Context) (*RunSummary, error) {
	ctx, cancel := context.WithTimeout(parent, r.cfg.RunTimeout)
	defer cancel()

	ctx, runID := correlation.EnsureCorrelationID(ctx)
	summary := &RunSummary{RunID: runID, startedAt: time.Now()}
	log := r.logger(ctx).With(zap.String("run_id", runID))

	release, acquired, err := r.acquire(ctx)
	if err != nil {
		r.metrics.IncError(classify(err))
		return summary, fmt.Errorf("acquire reconcile lock: %w", err)
	}
	if !acquired {
		summary.Skipped = true
		r.metrics.IncSkipped()
		log.Debug("reconcile run skipped, lock held by another replica")
		return summary, nil
	}
	defer release()

	r.logRunStart(log, summary)
	err = r.sweep(ctx, log, summary)
	r.metrics.ObserveRun(time.Since(summary.startedAt))
	r.logRunFinish(log, summary)
	if err == nil {
		return summary, nil
	}

	// deadline is a soft timeout, the next run picks up the remainder
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		r.metrics.IncError(obsmetrics.ReconcileReasonDeadlineExceeded)
		log.Warn("reconcile run timed out",
			zap.Duration("timeout", r.cfg.RunTimeout),
			zap.Error(err),
		)
		return summary, nil
	}
	return summary, err
}

func (r *Reconciler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil {
			r.log.Warn("reconcile run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ReconcileOrder reconciles one purchase regardless of its age. Terminal
// purchases are reported as they are.
func (r *Reconciler) ReconcileOrder(ctx context.Context, orderID string) (*OrderResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, entitlementdomain.ErrInvalidOrderID
	}
	ctx, _ = correlation.EnsureCorrelationID(ctx)

	purchase, err := r.store.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	result, err := r.reconcile(ctx, purchase)
	if err != nil {
		r.metrics.IncOrder(obsmetrics.ReconcileOutcomeFailed)
		r.metrics.IncError(classify(err))
		return nil, err
	}
	r.metrics.IncOrder(result.Outcome)
	r.logger(ctx).Info("purchase reconciled",
		zap.String("order_id", result.OrderID),
		zap.String("outcome", result.Outcome),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

func (r *Reconciler) sweep(ctx context.Context, log *zap.Logger, summary *RunSummary) error {
	pending, err := r.store.ListByStatus(ctx, entitlementdomain.ListByStatusRequest{
		Status:        entitlementdomain.StatusPending,
		CreatedBefore: r.clock.Now().Add(-r.cfg.StaleAfter),
		Limit:         r.cfg.BatchSize,
	})
	if err != nil {
		r.metrics.IncError(classify(err))
		return fmt.Errorf("list pending purchases: %w", err)
	}

	var errs error
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return errors.Join(errs, err)
		}
		purchase := &pending[i]
		result, err := r.reconcile(ctx, purchase)
		if err != nil {
			summary.add(obsmetrics.ReconcileOutcomeFailed)
			r.metrics.IncOrder(obsmetrics.ReconcileOutcomeFailed)
			r.metrics.IncError(classify(err))
			log.Warn("failed to reconcile purchase",
				zap.String("order_id", purchase.OrderID),
				zap.Error(err),
			)
			errs = errors.Join(errs, fmt.Errorf("%s: %w", purchase.OrderID, err))
			continue
		}
		summary.add(result.Outcome)
		r.metrics.IncOrder(result.Outcome)
	}
	return errs
}

func (r *Reconciler) reconcile(ctx context.Context, purchase *entitlementdomain.Purchase) (*OrderResult, error) {
	if purchase.Status.IsTerminal() {
		return &OrderResult{
			OrderID: purchase.OrderID,
			Outcome: obsmetrics.ReconcileOutcomeResolved,
			Status:  purchase.Status,
		}, nil
	}

	notification, err := r.gateway.TransactionStatus(ctx, purchase.OrderID)
	switch {
	case errors.Is(err, paymentdomain.ErrTransactionNotFound):
		return r.expireUnknown(ctx, purchase)
	case err != nil:
		return nil, err
	}

	applied, err := r.purchases.ApplyGatewayStatus(ctx, notification)
	if err != nil {
		return nil, err
	}
	outcome := obsmetrics.ReconcileOutcomePending
	if applied.Resolved != "" {
		outcome = obsmetrics.ReconcileOutcomeResolved
	}
	return &OrderResult{
		OrderID:           purchase.OrderID,
		Outcome:           outcome,
		TransactionStatus: notification.TransactionStatus,
		Status:            applied.Status,
		Applied:           applied.Applied,
	}, nil
}

// expireUnknown fails a purchase the gateway has no transaction for once it
// is older than ExpireAfter; the buyer never completed checkout.
func (r *Reconciler) expireUnknown(ctx context.Context, purchase *entitlementdomain.Purchase) (*OrderResult, error) {
	if r.clock.Now().Sub(purchase.CreatedAt) < r.cfg.ExpireAfter {
		return &OrderResult{
			OrderID: purchase.OrderID,
			Outcome: obsmetrics.ReconcileOutcomePending,
			Status:  purchase.Status,
		}, nil
	}

	resolved, err := r.store.Resolve(ctx, purchase.OrderID, entitlementdomain.StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("expire purchase: %w", err)
	}
	return &OrderResult{
		OrderID: purchase.OrderID,
		Outcome: obsmetrics.ReconcileOutcomeExpired,
		Status:  resolved.Purchase.Status,
		Applied: resolved.Applied,
	}, nil
}

func (r *Reconciler) acquire(ctx context.Context) (func(), bool, error) {
	if r.locker == nil {
		return func() {}, true, nil
	}
	token, ok, err := r.locker.TryLock(ctx, lockKey, r.cfg.RunTimeout+5*time.Second)
	if err != nil || !ok {
		return nil, ok, err
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := r.locker.Release(releaseCtx, lockKey, token); err != nil {
			r.log.Warn("failed to release reconcile lock", zap.Error(err))
		}
	}, true, nil
}

func classify(err error) string {
	if paymentdomain.IsGatewayError(err) {
		return obsmetrics.ReconcileReasonGateway
	}
	return obsmetrics.ClassifyReconcileError(err, nil)
}
