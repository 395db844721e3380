package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	obslogger "github.com/smallbiznis/fotoyou/internal/observability/logger"
	"go.uber.org/zap"
)

// PurchaseRateLimit throttles purchase initiation per authenticated user. It
// fails open when the limiter backend is unreachable.
func (s *Server) PurchaseRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.purchaseLimiter.Enabled() {
			c.Next()
			return
		}
		identity, ok := identityFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := c.Request.Context()
		result, err := s.purchaseLimiter.AllowUser(ctx, identity.UserID)
		if err != nil {
			obslogger.WithContext(ctx, s.log).Warn("purchase rate limit check failed", zap.Error(err))
			c.Next()
			return
		}

		if result.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		}
		if result.Allowed {
			c.Next()
			return
		}

		endpoint := normalizeRateLimitEndpoint(c)
		obslogger.WithContext(ctx, s.log).Warn("purchase rate limit exceeded",
			zap.String("endpoint", endpoint),
		)
		s.obsMetrics.RecordRateLimitDenied(ctx, endpoint)

		retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		AbortWithError(c, ErrRateLimited)
	}
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
