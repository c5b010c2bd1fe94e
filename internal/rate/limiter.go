package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter enforces fixed-window ceilings on arbitrary keys using Redis
// counters. Key semantics (route class, caller identity) belong to the
// caller; the limiter only counts.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, prefix string) *Limiter {
	return &Limiter{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (l *Limiter) key(key string) string {
	return l.prefix + ":rl:" + key
}

// Allow records one hit against the key and checks it against the ceiling.
// Returns ErrRateLimited once the window's counter exceeds the ceiling and
// ErrRedisUnavailable when the backend cannot be reached.
func (l *Limiter) Allow(ctx context.Context, key string, window time.Duration, ceiling int) error {
	count, err := l.incrementWithTTL(ctx, l.key(key), window)
	if err != nil {
		return err
	}
	if count > int64(ceiling) {
		return ErrRateLimited
	}
	return nil
}

// Count returns the current window counter for a key. Missing keys return
// zero.
func (l *Limiter) Count(ctx context.Context, key string) (int, error) {
	count, err := l.redis.Get(ctx, l.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// Reset clears the counter for a key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
