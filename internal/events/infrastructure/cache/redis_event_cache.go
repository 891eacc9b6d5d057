// Package cache caches the event read model in Redis so repeated
// registration checks do not hammer the catalog tables.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/convenehq/convene/internal/events/domain"
)

// RedisEventCache wraps an event repository with a TTL-scoped Redis
// cache. Only FindByID is cached; LockForUpdate always hits the
// database because lock decisions must see committed state.
type RedisEventCache struct {
	inner  domain.Repository
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisEventCache creates a caching decorator around the given
// repository.
func NewRedisEventCache(inner domain.Repository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisEventCache {
	return &RedisEventCache{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(id uuid.UUID) string {
	return fmt.Sprintf("convene:event:%s", id)
}

// FindByID returns the cached event when present, falling back to the
// inner repository. Cache failures degrade to a database read.
func (c *RedisEventCache) FindByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	key := cacheKey(id)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var event domain.Event
		if err := json.Unmarshal(data, &event); err == nil {
			return &event, nil
		}
		c.logger.Warn("corrupt event cache entry, evicting", slog.String("key", key))
		c.client.Del(ctx, key)
	} else if err != redis.Nil {
		c.logger.Warn("event cache read failed", slog.String("key", key), slog.Any("error", err))
	}

	event, err := c.inner.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(event); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("event cache write failed", slog.String("key", key), slog.Any("error", err))
		}
	}

	return event, nil
}

// LockForUpdate delegates to the inner repository.
func (c *RedisEventCache) LockForUpdate(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	return c.inner.LockForUpdate(ctx, id)
}

// Invalidate drops the cached entry for an event.
func (c *RedisEventCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, cacheKey(id)).Err()
}
