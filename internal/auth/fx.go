package auth

import (
	"github.com/smallbiznis/fotoyou/internal/auth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.verifier",
	fx.Provide(service.NewVerifier),
)
