// Package cache fronts the catalog client with a TTL cache for single-story
// lookups. Concurrent misses for the same id share one upstream call.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/fotoyou/internal/cache"
	"github.com/smallbiznis/fotoyou/internal/catalog/domain"
	"github.com/smallbiznis/fotoyou/internal/config"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "catalog:story:"

type CachedClient struct {
	next  domain.Client
	store cache.Cache[string, domain.Story]
	ttl   time.Duration
	group singleflight.Group
}

func New(next domain.Client, store cache.Cache[string, domain.Story], ttl time.Duration) *CachedClient {
	return &CachedClient{next: next, store: store, ttl: ttl}
}

// NewStore picks Redis when a client is configured and an in-process map otherwise.
func NewStore(client *redis.Client, log *zap.Logger) cache.Cache[string, domain.Story] {
	if client == nil {
		return cache.NewTTLCache[string, domain.Story]()
	}
	return cache.NewRedisCache[domain.Story](client, keyPrefix, log.Named("catalog.cache"))
}

func TTL(cfg config.Config) time.Duration {
	return time.Duration(cfg.Catalog.CacheTTLSecs) * time.Second
}

func (c *CachedClient) ListStories(ctx context.Context, req domain.ListStoriesRequest) ([]domain.Story, error) {
	return c.next.ListStories(ctx, req)
}

func (c *CachedClient) GetStory(ctx context.Context, storyID string) (*domain.Story, error) {
	if c.ttl <= 0 {
		return c.next.GetStory(ctx, storyID)
	}
	if story, ok := c.store.Get(ctx, storyID); ok {
		return &story, nil
	}

	v, err, _ := c.group.Do(storyID, func() (any, error) {
		// The shared call outlives whichever caller started it.
		detached := context.WithoutCancel(ctx)
		story, err := c.next.GetStory(detached, storyID)
		if err != nil {
			return nil, err
		}
		c.store.Set(detached, storyID, *story, c.ttl)
		return story, nil
	})
	if err != nil {
		return nil, err
	}
	story := *v.(*domain.Story)
	return &story, nil
}
