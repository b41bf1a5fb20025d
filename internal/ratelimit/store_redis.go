package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps counters in Redis. Counters use INCR with an expiry set on
// first increment; blocks use plain SET with TTL. Decrement is deliberately
// unsupported: a refund racing the window expiry would underflow into the
// next window, so conditional counting stays a memory-store feature.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}

	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		return count, window, nil
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if ttl < 0 {
		// Expiry got lost (e.g. a crashed Expire); reattach it rather than
		// leaving an immortal counter.
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		ttl = window
	}
	return count, ttl, nil
}

func (s *RedisStore) Decr(ctx context.Context, key string) error {
	return ErrDecrUnsupported
}

func (s *RedisStore) Block(ctx context.Context, key string, d time.Duration) error {
	return s.client.Set(ctx, key, "1", d).Err()
}

func (s *RedisStore) BlockedFor(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

func (s *RedisStore) IncrBreach(ctx context.Context, key string, period time.Duration) (int64, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, period).Err(); err != nil {
			return 0, err
		}
	}
	return count, nil
}
