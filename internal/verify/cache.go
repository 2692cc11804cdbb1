package verify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "verify:"

// DefaultCacheTTL bounds retention of verification results; national-ID data
// must not linger indefinitely.
const DefaultCacheTTL = 5 * time.Minute

// CachedClient wraps a Client with a Redis read-through cache keyed by the
// primary identifier. Cache failures fall through to the live verifier.
type CachedClient struct {
	inner  Client
	redis  *goredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedClient(inner Client, redis *goredis.Client, ttl time.Duration, logger *slog.Logger) *CachedClient {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedClient{inner: inner, redis: redis, ttl: ttl, logger: logger}
}

func (c *CachedClient) Verify(ctx context.Context, idPrimary, idSecondary string) (Result, error) {
	key := cacheKeyPrefix + idPrimary
	if raw, err := c.redis.Get(ctx, key).Result(); err == nil {
		var cached Result
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return cached, nil
		}
	} else if !errors.Is(err, goredis.Nil) && c.logger != nil {
		c.logger.Warn("verification cache read failed", "error", err)
	}

	result, err := c.inner.Verify(ctx, idPrimary, idSecondary)
	if err != nil {
		return Result{}, err
	}
	if raw, err := json.Marshal(result); err == nil {
		if err := c.redis.Set(ctx, key, raw, c.ttl).Err(); err != nil && c.logger != nil {
			c.logger.Warn("verification cache write failed", "error", err)
		}
	}
	return result, nil
}
