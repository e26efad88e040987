package policy

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKey = "custos:policy:active"

// CachedReader is a read-through redis cache in front of a policy Reader.
// Policy is read by every component on every scoring call and enforcement
// sweep, so a short TTL cache keeps the store off the hot path. Cache
// failures degrade to the underlying reader, never to an error.
type CachedReader struct {
	inner  Reader
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedReader(inner Reader, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedReader {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedReader{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (c *CachedReader) GetActivePolicy(ctx context.Context) (Policy, error) {
	if body, err := c.client.Get(ctx, cacheKey).Bytes(); err == nil {
		var p Policy
		if err := json.Unmarshal(body, &p); err == nil {
			return p, nil
		}
		// Corrupt cache entry: drop it and fall through to the store.
		c.client.Del(ctx, cacheKey)
	}

	p, err := c.inner.GetActivePolicy(ctx)
	if err != nil {
		return Policy{}, err
	}

	if body, err := json.Marshal(p); err == nil {
		if err := c.client.Set(ctx, cacheKey, body, c.ttl).Err(); err != nil && c.logger != nil {
			c.logger.WarnContext(ctx, "policy cache write failed", "error", err)
		}
	}
	return p, nil
}

// Invalidate drops the cached policy, forcing the next read through.
func (c *CachedReader) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, cacheKey).Err()
}
