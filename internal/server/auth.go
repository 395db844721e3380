package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/fotoyou/internal/auth/domain"
	obscontext "github.com/smallbiznis/fotoyou/internal/observability/context"
)

// story_id and order_id are read back by the request logger and tracer.
const (
	contextIdentityKey = "identity"
	contextStoryIDKey  = "story_id"
	contextOrderIDKey  = "order_id"
)

// BearerAuthRequired verifies the caller's bearer token. A missing token is
// 401; a token that fails verification is 403.
func (s *Server) BearerAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			AbortWithError(c, authdomain.ErrMissingToken)
			return
		}

		identity, err := s.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := obscontext.WithUserID(c.Request.Context(), identity.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextIdentityKey, identity)
		c.Next()
	}
}

func bearerToken(header string) string {
	parts := strings.Fields(strings.TrimSpace(header))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func identityFromContext(c *gin.Context) (*authdomain.Identity, bool) {
	if c == nil {
		return nil, false
	}
	value, ok := c.Get(contextIdentityKey)
	if !ok {
		return nil, false
	}
	identity, ok := value.(*authdomain.Identity)
	if !ok || identity == nil || strings.TrimSpace(identity.UserID) == "" {
		return nil, false
	}
	return identity, true
}
