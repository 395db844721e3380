package entitlement

import (
	"github.com/smallbiznis/fotoyou/internal/entitlement/repository"
	"github.com/smallbiznis/fotoyou/internal/entitlement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("entitlement.store",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
