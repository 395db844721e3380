package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ReconcileReasonDeadlineExceeded = "deadline_exceeded"
	ReconcileReasonDBLockTimeout    = "db_lock_timeout"
	ReconcileReasonGateway          = "gateway"
	ReconcileReasonUnknown          = "unknown"

	ReconcileOutcomeResolved = "resolved"
	ReconcileOutcomePending  = "pending"
	ReconcileOutcomeExpired  = "expired"
	ReconcileOutcomeFailed   = "failed"
)

// ReconcileMetrics tracks the stale-purchase sweep.
type ReconcileMetrics struct {
	runs     prometheus.Counter
	skipped  prometheus.Counter
	duration prometheus.Histogram
	errors   *prometheus.CounterVec
	orders   *prometheus.CounterVec
}

var (
	reconcileMetricsOnce sync.Once
	reconcileMetrics     *ReconcileMetrics
)

// Reconcile returns the process-wide reconcile metrics registered on the default registry.
func Reconcile(cfg Config) *ReconcileMetrics {
	reconcileMetricsOnce.Do(func() {
		reconcileMetrics = NewReconcileMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return reconcileMetrics
}

func NewReconcileMetrics(registerer prometheus.Registerer, cfg Config) *ReconcileMetrics {
	constLabels := serviceLabels(cfg)

	runs := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "fotoyou_reconcile_runs_total",
		Help:        "Reconcile sweeps started.",
		ConstLabels: constLabels,
	})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "fotoyou_reconcile_skipped_total",
		Help:        "Reconcile sweeps skipped because another replica holds the lock.",
		ConstLabels: constLabels,
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "fotoyou_reconcile_duration_seconds",
		Help:        "Reconcile sweep latency.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		ConstLabels: constLabels,
	})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "fotoyou_reconcile_errors_total",
		Help:        "Reconcile errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "fotoyou_reconcile_orders_total",
		Help:        "Pending orders examined by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})

	return &ReconcileMetrics{
		runs:     registerOrExisting(registerer, runs).(prometheus.Counter),
		skipped:  registerOrExisting(registerer, skipped).(prometheus.Counter),
		duration: registerOrExisting(registerer, duration).(prometheus.Histogram),
		errors:   registerOrExisting(registerer, errs).(*prometheus.CounterVec),
		orders:   registerOrExisting(registerer, orders).(*prometheus.CounterVec),
	}
}

func (m *ReconcileMetrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.runs.Inc()
	m.duration.Observe(d.Seconds())
}

func (m *ReconcileMetrics) IncSkipped() {
	if m == nil {
		return
	}
	m.skipped.Inc()
}

func (m *ReconcileMetrics) IncError(reason string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(reason).Inc()
}

func (m *ReconcileMetrics) IncOrder(outcome string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(outcome).Inc()
}

// ClassifyReconcileError maps an error to a bounded reason label.
func ClassifyReconcileError(err error, gatewayErr error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReconcileReasonDeadlineExceeded
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "55P03" || pgErr.Code == "40P01") {
		return ReconcileReasonDBLockTimeout
	}
	if gatewayErr != nil && errors.Is(err, gatewayErr) {
		return ReconcileReasonGateway
	}
	return ReconcileReasonUnknown
}
