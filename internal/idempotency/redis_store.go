package idempotency

import (
	"context"
	"fmt"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/redisclient"
)

// RedisStore backs the Store contract with Redis so idempotency records are
// shared across horizontally-scaled instances. TTL handling moves to Redis
// key expiry.
type RedisStore struct {
	client *redisclient.Client
	ttl    time.Duration
}

func NewRedisStore(client *redisclient.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Check(ctx context.Context, key string) (bool, *models.OrderResult, error) {
	var result models.OrderResult
	found, err := s.client.GetJSON(ctx, redisKey(key), &result)
	if err != nil {
		return false, nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if !found {
		return false, nil, nil
	}
	return true, &result, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, result *models.OrderResult) error {
	if err := s.client.SetJSON(ctx, redisKey(key), result, s.ttl); err != nil {
		return fmt.Errorf("idempotency store: %w", err)
	}
	return nil
}

func redisKey(key string) string {
	return "idempotency:" + key
}
