package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptConfig holds configuration for the verification attempt limiter.
// The limiter only counts; thresholds and consequences belong to the caller.
type AttemptConfig struct {
	Window time.Duration
}

var (
	// ErrAttemptsUnavailable indicates the attempt counter backend is unreachable.
	ErrAttemptsUnavailable = errors.New("attempt counter backend unavailable")
)

// AttemptLimiter tracks failed one-time-code attempts per (subject, action,
// target) key and reports when the configured threshold is crossed.
type AttemptLimiter struct {
	redis  redis.UniversalClient
	config AttemptConfig
	prefix string
}

// NewAttemptLimiter creates a new attempt limiter.
func NewAttemptLimiter(redisClient redis.UniversalClient, prefix string, cfg AttemptConfig) *AttemptLimiter {
	return &AttemptLimiter{redis: redisClient, config: cfg, prefix: prefix}
}

func (l *AttemptLimiter) key(subject, action, target string) string {
	k := l.prefix + ":va:" + subject + ":" + action
	if target != "" {
		k += ":" + target
	}
	return k
}

// RecordFailure increments the failure counter for a key and returns the new
// count. The increment and the window TTL are store-side operations, so two
// concurrent callers always observe distinct counts: exactly one of them sees
// the threshold value.
func (l *AttemptLimiter) RecordFailure(ctx context.Context, subject, action, target string) (int64, error) {
	if l == nil || subject == "" {
		return 0, nil
	}

	key := l.key(subject, action, target)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAttemptsUnavailable, err)
	}

	if count == 1 && l.config.Window > 0 {
		// TTL on first failure gives the counter rolling-window semantics.
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrAttemptsUnavailable, err)
		}
	}

	return count, nil
}

// Reset deletes the counter (call on success or after the threshold has been
// escalated).
func (l *AttemptLimiter) Reset(ctx context.Context, subject, action, target string) error {
	if l == nil || subject == "" {
		return nil
	}

	if err := l.redis.Del(ctx, l.key(subject, action, target)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrAttemptsUnavailable, err)
	}
	return nil
}

// Attempts returns the current failure count for a key without mutating it.
func (l *AttemptLimiter) Attempts(ctx context.Context, subject, action, target string) (int, error) {
	if l == nil || subject == "" {
		return 0, nil
	}

	count, err := l.redis.Get(ctx, l.key(subject, action, target)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrAttemptsUnavailable, err)
	}
	return int(count), nil
}
