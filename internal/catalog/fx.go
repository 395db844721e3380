package catalog

import (
	"github.com/redis/go-redis/v9"
	catalogcache "github.com/smallbiznis/fotoyou/internal/catalog/cache"
	"github.com/smallbiznis/fotoyou/internal/catalog/client"
	"github.com/smallbiznis/fotoyou/internal/catalog/domain"
	"github.com/smallbiznis/fotoyou/internal/catalog/service"
	"github.com/smallbiznis/fotoyou/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("catalog.service",
	fx.Provide(
		fx.Annotate(client.New, fx.ResultTags(`name:"catalog_upstream"`)),
	),
	fx.Provide(newCachedClient),
	fx.Provide(service.NewService),
)

type cachedClientParams struct {
	fx.In

	Upstream domain.Client `name:"catalog_upstream"`
	Redis    *redis.Client `optional:"true"`
	Cfg      config.Config
	Log      *zap.Logger
}

func newCachedClient(p cachedClientParams) domain.Client {
	return catalogcache.New(p.Upstream, catalogcache.NewStore(p.Redis, p.Log), catalogcache.TTL(p.Cfg))
}
