package market

import (
	"context"
	"errors"
	"time"

	errx "github.com/coingraph/server/internal/core/error"
	logx "github.com/coingraph/server/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Cache is the read-through cache consulted before every upstream call.
// Implementations must be safe for concurrent use. Cache failures are never
// surfaced to callers: a broken backend degrades to always-miss.
type Cache interface {
	// Get returns the live payload stored under key, if any.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores the payload under key with the given TTL, best-effort.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// RedisCache stores payloads in Redis with per-key expiry.
type RedisCache struct {
	rdb redis.Cmdable
}

func NewRedisCache(rdb redis.Cmdable) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logx.Warn().Err(errx.WrapRedis(err)).Str("key", key).Msg("cache read failed, treating as miss")
		}
		return nil, false
	}
	return b, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		logx.Warn().Err(errx.WrapRedis(err)).Str("key", key).Msg("cache write failed, continuing without")
	}
}

// NoopCache is the cache used when no backend is configured: every read
// misses and writes are discarded. Keeps call sites free of nil checks.
type NoopCache struct{}

func (NoopCache) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }

func (NoopCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {}

var (
	_ Cache = (*RedisCache)(nil)
	_ Cache = NoopCache{}
)
