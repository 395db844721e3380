package authorization

import (
	"context"

	authdomain "github.com/smallbiznis/fotoyou/internal/auth/domain"
)

// Service decides whether an authenticated identity may perform an operator
// action. Roles come from the bearer token's role claim.
type Service interface {
	Authorize(ctx context.Context, identity *authdomain.Identity, object string, action string) error
}
