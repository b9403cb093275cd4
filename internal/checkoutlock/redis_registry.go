package checkoutlock

import (
	"context"
	"fmt"
	"time"

	"checkout-service/internal/redisclient"
)

// RedisRegistry backs the Registry contract with Redis SETNX so the lock
// holds across instances. The stale-lock timeout becomes the key TTL, which
// also covers the crashed-holder case without a sweep.
type RedisRegistry struct {
	client *redisclient.Client
	stale  time.Duration
}

func NewRedisRegistry(client *redisclient.Client, stale time.Duration) *RedisRegistry {
	return &RedisRegistry{client: client, stale: stale}
}

func (r *RedisRegistry) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, lockKey(key), r.stale)
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	return ok, nil
}

func (r *RedisRegistry) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, lockKey(key)); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

func lockKey(key string) string {
	return "lock:checkout:" + key
}
