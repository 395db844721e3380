package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/fotoyou/internal/config"
	"go.uber.org/zap"
)

const keyPurchaseInitiateUser = "purchase:initiate:user:%s"

// PurchaseLimiter throttles purchase initiation per user. A nil or disabled
// limiter allows everything.
type PurchaseLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
	log    *zap.Logger
}

func NewPurchaseLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) *PurchaseLimiter {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled || client == nil {
		return nil
	}
	if limitCfg.PurchaseRate <= 0 || limitCfg.PurchaseBurst <= 0 {
		log.Warn("purchase rate limit disabled: rate and burst must be positive")
		return nil
	}
	return &PurchaseLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.PurchaseRate,
		burst:  limitCfg.PurchaseBurst,
		log:    log.Named("ratelimit.purchase"),
	}
}

func (l *PurchaseLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowUser fails open on backend errors so a Redis outage cannot block purchases.
func (l *PurchaseLimiter) AllowUser(ctx context.Context, userID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyPurchaseInitiateUser, strings.TrimSpace(userID)), l.rate, l.burst)
	if err != nil {
		l.log.Warn("purchase rate limit check failed", zap.String("user_id", userID), zap.Error(err))
		return &RateLimitResult{Allowed: true}, err
	}
	return res, nil
}
