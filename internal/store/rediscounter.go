package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rezolv/rezolv/internal/ratelimit"
)

// RedisCounterStore is the Redis implementation of ratelimit.CounterStore.
// INCR and the expiry set run in one pipeline round trip; the expiry is
// only applied when the increment created the key, so the window keeps its
// original deadline.
type RedisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore creates a Redis-backed window counter store.
func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func (s *RedisCounterStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	return incr.Val(), nil
}

// Compile-time check.
var _ ratelimit.CounterStore = (*RedisCounterStore)(nil)
