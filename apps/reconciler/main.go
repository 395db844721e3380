package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fotoyou/internal/cache"
	"github.com/smallbiznis/fotoyou/internal/clock"
	"github.com/smallbiznis/fotoyou/internal/config"
	"github.com/smallbiznis/fotoyou/internal/entitlement"
	"github.com/smallbiznis/fotoyou/internal/observability"
	"github.com/smallbiznis/fotoyou/internal/payment"
	"github.com/smallbiznis/fotoyou/internal/purchase"
	"github.com/smallbiznis/fotoyou/internal/reconcile"
	"github.com/smallbiznis/fotoyou/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,

		// Domain services required by the reconciler
		entitlement.Module,
		payment.Module,
		purchase.Module,

		// No server module!
		reconcile.Module,
		reconcile.Worker,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
