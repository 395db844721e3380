package payment

import (
	"net/http"
	"time"

	"github.com/smallbiznis/fotoyou/internal/config"
	"github.com/smallbiznis/fotoyou/internal/payment/adapters"
	"github.com/smallbiznis/fotoyou/internal/payment/adapters/midtrans"
	"github.com/smallbiznis/fotoyou/internal/payment/domain"
	"github.com/smallbiznis/fotoyou/internal/payment/repository"
	paymentservice "github.com/smallbiznis/fotoyou/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			midtrans.NewFactory(),
		)
	}),
	fx.Provide(NewGateway),
	fx.Provide(paymentservice.NewService),
)

// NewGateway builds the adapter for the configured provider.
func NewGateway(cfg config.Config, registry *adapters.Registry, log *zap.Logger) (domain.Gateway, error) {
	timeout := time.Duration(cfg.Payment.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	gateway, err := registry.NewAdapter(cfg.Payment.Provider, domain.AdapterConfig{
		Config: map[string]any{
			"server_key":     cfg.Payment.ServerKey,
			"client_key":     cfg.Payment.ClientKey,
			"production":     cfg.Payment.Production,
			"confirm_status": cfg.Payment.ConfirmStatus,
		},
		HTTPClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		log.Error("payment gateway not configured",
			zap.String("provider", cfg.Payment.Provider),
			zap.Error(err),
		)
		return nil, err
	}

	log.Info("payment gateway ready",
		zap.String("provider", gateway.Provider()),
		zap.Bool("production", cfg.Payment.Production),
		zap.Bool("confirm_status", cfg.Payment.ConfirmStatus),
	)
	return gateway, nil
}
