package reconcile

import (
	"context"
	"time"

	obslogger "github.com/smallbiznis/fotoyou/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/fotoyou/internal/observability/metrics"
	"go.uber.org/zap"
)

// RunSummary counts what one sweep did, keyed by outcome.
type RunSummary struct {
	RunID    string `json:"run_id"`
	Skipped  bool   `json:"skipped"`
	Examined int    `json:"examined"`
	Resolved int    `json:"resolved"`
	Expired  int    `json:"expired"`
	Pending  int    `json:"pending"`
	Failed   int    `json:"failed"`

	startedAt time.Time
}

func (s *RunSummary) add(outcome string) {
	s.Examined++
	switch outcome {
	case obsmetrics.ReconcileOutcomeResolved:
		s.Resolved++
	case obsmetrics.ReconcileOutcomeExpired:
		s.Expired++
	case obsmetrics.ReconcileOutcomePending:
		s.Pending++
	default:
		s.Failed++
	}
}

func (r *Reconciler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, r.log)
}

func (r *Reconciler) logRunStart(log *zap.Logger, summary *RunSummary) {
	log.Info("reconcile run started",
		zap.Int("batch_size", r.cfg.BatchSize),
		zap.Duration("stale_after", r.cfg.StaleAfter),
		zap.Time("started_at", summary.startedAt),
	)
}

func (r *Reconciler) logRunFinish(log *zap.Logger, summary *RunSummary) {
	fields := []zap.Field{
		zap.Int("examined", summary.Examined),
		zap.Int("resolved", summary.Resolved),
		zap.Int("expired", summary.Expired),
		zap.Int("pending", summary.Pending),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", time.Since(summary.startedAt)),
	}
	if summary.Failed > 0 {
		log.Warn("reconcile run finished with errors", fields...)
		return
	}
	log.Info("reconcile run finished", fields...)
}
