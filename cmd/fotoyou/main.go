package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fotoyou/internal/auth"
	"github.com/smallbiznis/fotoyou/internal/authorization"
	"github.com/smallbiznis/fotoyou/internal/cache"
	"github.com/smallbiznis/fotoyou/internal/catalog"
	"github.com/smallbiznis/fotoyou/internal/clock"
	"github.com/smallbiznis/fotoyou/internal/config"
	"github.com/smallbiznis/fotoyou/internal/entitlement"
	"github.com/smallbiznis/fotoyou/internal/migration"
	"github.com/smallbiznis/fotoyou/internal/observability"
	"github.com/smallbiznis/fotoyou/internal/payment"
	"github.com/smallbiznis/fotoyou/internal/providers/pdf"
	"github.com/smallbiznis/fotoyou/internal/purchase"
	"github.com/smallbiznis/fotoyou/internal/ratelimit"
	"github.com/smallbiznis/fotoyou/internal/reconcile"
	"github.com/smallbiznis/fotoyou/internal/server"
	"github.com/smallbiznis/fotoyou/pkg/db"
	"go.uber.org/fx"
)

// The monolith serves the HTTP API and runs the reconcile worker in one
// process. apps/api and apps/reconciler split the two for larger deployments.
func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,
		migration.Module,

		// Functional Domains
		entitlement.Module,
		payment.Module,
		catalog.Module,
		purchase.Module,
		auth.Module,
		authorization.Module,
		ratelimit.Module,
		pdf.Module,
		reconcile.Module,
		reconcile.Worker,

		server.Module,
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
