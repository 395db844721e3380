package reconcile

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the reconciler for on-demand use by the admin API.
var Module = fx.Module("reconcile",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
)

// Worker runs the periodic sweep for the lifetime of the app.
var Worker = fx.Module("reconcile.worker",
	fx.Invoke(StartWorker),
)

func StartWorker(lc fx.Lifecycle, cfg Config, r *Reconciler, log *zap.Logger) {
	if !cfg.Enabled {
		log.Info("reconcile worker disabled")
		return
	}

	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go r.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
}
