package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-payments/internal/core/ports"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const defaultLockPollInterval = 50 * time.Millisecond

// releaseScript deletes the lock only if it still carries the caller's token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// OrderLock implements ports.OrderLocker with a token-guarded SET NX lease.
type OrderLock struct {
	client       goredis.UniversalClient
	prefix       string
	pollInterval time.Duration
}

var _ ports.OrderLocker = (*OrderLock)(nil)

// NewOrderLock creates a Redis-backed per-order lock.
func NewOrderLock(client goredis.UniversalClient) *OrderLock {
	return &OrderLock{
		client:       client,
		prefix:       "lock:order:",
		pollInterval: defaultLockPollInterval,
	}
}

// Acquire takes the lease for orderNumber, polling until ctx is done.
// It returns ports.ErrLockNotAcquired when the wait ran out.
func (l *OrderLock) Acquire(ctx context.Context, orderNumber string, ttl time.Duration) (string, error) {
	key := l.prefix + orderNumber
	token := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.tryAcquire(ctx, key, token, ttl)
		if err != nil {
			if ctx.Err() != nil {
				return "", ports.ErrLockNotAcquired
			}
			return "", err
		}
		if ok {
			return token, nil
		}

		select {
		case <-ctx.Done():
			return "", ports.ErrLockNotAcquired
		case <-ticker.C:
		}
	}
}

func (l *OrderLock) tryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	result, err := l.client.SetArgs(ctx, key, token, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			// Held by someone else
			return false, nil
		}
		return false, fmt.Errorf("redis order lock acquire: %w", err)
	}
	return result == "OK", nil
}

// Release drops the lease if token still owns it. An expired or stolen
// lease is left alone.
func (l *OrderLock) Release(ctx context.Context, orderNumber, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + orderNumber}, token).Err(); err != nil {
		return fmt.Errorf("redis order lock release: %w", err)
	}
	return nil
}
