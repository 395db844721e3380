package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes purchase-flow instruments.
type Metrics struct {
	purchaseInitiated    metric.Int64Counter
	paymentNotifications metric.Int64Counter
	entitlementResolved  metric.Int64Counter
	catalogRequests      metric.Int64Counter
	rateLimitDenied      metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "fotoyou"
	}
	meter := provider.Meter(name)

	purchaseInitiated, err := meter.Int64Counter("fotoyou_purchase_initiated_total")
	if err != nil {
		return nil, err
	}
	paymentNotifications, err := meter.Int64Counter("fotoyou_payment_notifications_total")
	if err != nil {
		return nil, err
	}
	entitlementResolved, err := meter.Int64Counter("fotoyou_entitlement_resolved_total")
	if err != nil {
		return nil, err
	}
	catalogRequests, err := meter.Int64Counter("fotoyou_catalog_requests_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("fotoyou_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		purchaseInitiated:    purchaseInitiated,
		paymentNotifications: paymentNotifications,
		entitlementResolved:  entitlementResolved,
		catalogRequests:      catalogRequests,
		rateLimitDenied:      rateLimitDenied,
	}, nil
}

// RecordPurchaseInitiated counts initiate attempts by outcome
// (created, conflict, invalid, gateway_error, storage_error).
func (m *Metrics) RecordPurchaseInitiated(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.purchaseInitiated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordPaymentNotification(ctx context.Context, provider, transactionStatus, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("transaction_status", strings.TrimSpace(transactionStatus)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.paymentNotifications.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEntitlementResolved counts resolve calls; applied is false for no-op redeliveries.
func (m *Metrics) RecordEntitlementResolved(ctx context.Context, status string, applied bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("status", strings.TrimSpace(status)),
		attribute.Bool("applied", applied),
	)
	m.entitlementResolved.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordCatalogRequest(ctx context.Context, endpoint, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.catalogRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":           {},
	"status_code":        {},
	"provider":           {},
	"transaction_status": {},
	"status":             {},
	"applied":            {},
	"outcome":            {},
	"reason":             {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
