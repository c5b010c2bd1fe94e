package trustcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var errOriginRedisUnavailable = errors.New("origin store redis unavailable")

// originStore owns the two per-origin ephemeral structures: the sliding
// account set used for multi-account detection and the quarantine flag that
// short-circuits repeat offenders.
type originStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newOriginStore(redisClient redis.UniversalClient, prefix string) *originStore {
	return &originStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *originStore) setKey(origin string) string {
	return s.prefix + ":oas:" + origin
}

func (s *originStore) flagKey(origin string) string {
	return s.prefix + ":obf:" + origin
}

// AddAccount inserts the account into the origin's set and refreshes the
// sliding window TTL. The TTL is refreshed on every insert, not just the
// first, so the window slides with activity.
func (s *originStore) AddAccount(ctx context.Context, origin, accountID string, window time.Duration) error {
	key := s.setKey(origin)
	if err := s.redis.SAdd(ctx, key, accountID).Err(); err != nil {
		return fmt.Errorf("%w: %v", errOriginRedisUnavailable, err)
	}
	if err := s.redis.Expire(ctx, key, window).Err(); err != nil {
		return fmt.Errorf("%w: %v", errOriginRedisUnavailable, err)
	}
	return nil
}

// Accounts returns every account id seen from the origin within the window.
func (s *originStore) Accounts(ctx context.Context, origin string) ([]string, error) {
	members, err := s.redis.SMembers(ctx, s.setKey(origin)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errOriginRedisUnavailable, err)
	}
	return members, nil
}

// SetQuarantine marks the origin as quarantined for the given TTL.
func (s *originStore) SetQuarantine(ctx context.Context, origin string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.flagKey(origin), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errOriginRedisUnavailable, err)
	}
	return nil
}

// IsQuarantined reports whether the fast-path flag is set. A missing key is
// not an error; the ledger remains the source of truth on cache miss.
func (s *originStore) IsQuarantined(ctx context.Context, origin string) (bool, error) {
	err := s.redis.Get(ctx, s.flagKey(origin)).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", errOriginRedisUnavailable, err)
	}
	return true, nil
}

// ClearQuarantine removes the fast-path flag (call when an origin block is
// lifted in the ledger).
func (s *originStore) ClearQuarantine(ctx context.Context, origin string) error {
	if err := s.redis.Del(ctx, s.flagKey(origin)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errOriginRedisUnavailable, err)
	}
	return nil
}
