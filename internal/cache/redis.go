package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/fotoyou/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewRedisClient returns nil when no address is configured; callers fall back
// to in-process behavior.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		log.Info("redis not configured, using in-process cache and limiter")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.Redis.Password),
		DB:       cfg.Redis.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis ping failed", zap.String("addr", addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	return client
}

type redisCache[V any] struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

// NewRedisCache stores JSON-encoded values under prefix+key.
func NewRedisCache[V any](client *redis.Client, prefix string, log *zap.Logger) Cache[string, V] {
	if log == nil {
		log = zap.NewNop()
	}
	return &redisCache[V]{client: client, prefix: prefix, log: log}
}

func (c *redisCache[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache get failed", zap.String("key", c.prefix+key), zap.Error(err))
		}
		return zero, false
	}
	var value V
	if err := json.Unmarshal(raw, &value); err != nil {
		c.log.Warn("cache decode failed", zap.String("key", c.prefix+key), zap.Error(err))
		return zero, false
	}
	return value, true
}

func (c *redisCache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("cache encode failed", zap.String("key", c.prefix+key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		c.log.Warn("cache set failed", zap.String("key", c.prefix+key), zap.Error(err))
	}
}

func (c *redisCache[V]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.log.Warn("cache delete failed", zap.String("key", c.prefix+key), zap.Error(err))
	}
}
