package redis

import (
	"context"
	"fmt"
	"time"

	"storefront-payments/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// CallbackCache implements ports.CallbackCache using Redis.
type CallbackCache struct {
	client goredis.UniversalClient
	prefix string
}

var _ ports.CallbackCache = (*CallbackCache)(nil)

// NewCallbackCache creates a new Redis-backed callback dedupe cache.
func NewCallbackCache(client goredis.UniversalClient) *CallbackCache {
	return &CallbackCache{
		client: client,
		prefix: "momo:callback:",
	}
}

// Seen reports whether key was remembered and has not expired.
func (c *CallbackCache) Seen(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis callback cache get: %w", err)
	}
	return n > 0, nil
}

// Remember stores key with TTL.
func (c *CallbackCache) Remember(ctx context.Context, key string, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Err()
	if err != nil {
		return fmt.Errorf("redis callback cache set: %w", err)
	}
	return nil
}
