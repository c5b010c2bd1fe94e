package trustcore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const challengeRecordVersionV1 = 1

var (
	errChallengeNotFound         = errors.New("challenge record not found")
	errChallengeRedisUnavailable = errors.New("challenge redis unavailable")
)

// originChallengeRecord is the stored state of one pending origin
// verification. The plaintext code is never persisted.
type originChallengeRecord struct {
	CodeHash    [32]byte
	IssuedAt    int64
	ChallengeID string
}

// challengeStore holds pending origin verification challenges, keyed by
// account+origin so a code issued for one origin cannot confirm another.
type challengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newChallengeStore(redisClient redis.UniversalClient, prefix string) *challengeStore {
	return &challengeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *challengeStore) key(accountID, origin string) string {
	return s.prefix + ":ovc:" + accountID + ":" + origin
}

// Save describes the save operation and its observable behavior.
//
// Save may return an error when input validation, dependency calls, or security checks fail.
// Save does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *challengeStore) Save(ctx context.Context, accountID, origin string, record *originChallengeRecord, ttl time.Duration) error {
	encoded, err := encodeChallengeRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(accountID, origin), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errChallengeRedisUnavailable, err)
	}
	return nil
}

// Get describes the get operation and its observable behavior.
//
// Get may return an error when input validation, dependency calls, or security checks fail.
// Get does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *challengeStore) Get(ctx context.Context, accountID, origin string) (*originChallengeRecord, error) {
	data, err := s.redis.Get(ctx, s.key(accountID, origin)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", errChallengeRedisUnavailable, err)
	}
	return decodeChallengeRecord(data)
}

// Delete removes a pending challenge (on successful confirmation or guard
// escalation).
func (s *challengeStore) Delete(ctx context.Context, accountID, origin string) error {
	if err := s.redis.Del(ctx, s.key(accountID, origin)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errChallengeRedisUnavailable, err)
	}
	return nil
}

func encodeChallengeRecord(record *originChallengeRecord) ([]byte, error) {
	if len(record.ChallengeID) > 255 {
		return nil, errors.New("challenge id too long")
	}

	buf := make([]byte, 0, 2+len(record.CodeHash)+8+len(record.ChallengeID))
	buf = append(buf, challengeRecordVersionV1)
	buf = append(buf, record.CodeHash[:]...)
	for i := 56; i >= 0; i -= 8 {
		buf = append(buf, byte(record.IssuedAt>>uint(i)))
	}
	buf = append(buf, byte(len(record.ChallengeID)))
	buf = append(buf, record.ChallengeID...)
	return buf, nil
}

func decodeChallengeRecord(data []byte) (*originChallengeRecord, error) {
	if len(data) < 1+32+8+1 {
		return nil, io.ErrUnexpectedEOF
	}
	if data[0] != challengeRecordVersionV1 {
		return nil, errors.New("invalid challenge record version")
	}

	record := &originChallengeRecord{}
	copy(record.CodeHash[:], data[1:33])
	for _, b := range data[33:41] {
		record.IssuedAt = record.IssuedAt<<8 | int64(b)
	}
	idLen := int(data[41])
	if len(data) < 42+idLen {
		return nil, io.ErrUnexpectedEOF
	}
	record.ChallengeID = string(data[42 : 42+idLen])
	return record, nil
}
