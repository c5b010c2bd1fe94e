package trustcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skillforge/trustcore/internal"
)

func TestChallengeStoreRoundTrip(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	s := newChallengeStore(rdb, "tc")
	ctx := context.Background()

	record := &originChallengeRecord{
		CodeHash:    internal.HashCode("123456"),
		IssuedAt:    time.Now().Unix(),
		ChallengeID: "ch-1",
	}

	if err := s.Save(ctx, "u1", "198.51.100.7", record, 10*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Get(ctx, "u1", "198.51.100.7")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.CodeHash != record.CodeHash || got.IssuedAt != record.IssuedAt || got.ChallengeID != record.ChallengeID {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, record)
	}

	// The key binds both account and origin.
	if _, err := s.Get(ctx, "u1", "198.51.100.8"); !errors.Is(err, errChallengeNotFound) {
		t.Fatalf("other origin must not see the challenge, got %v", err)
	}
	if _, err := s.Get(ctx, "u2", "198.51.100.7"); !errors.Is(err, errChallengeNotFound) {
		t.Fatalf("other account must not see the challenge, got %v", err)
	}
}

func TestChallengeExpiresWithTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	s := newChallengeStore(rdb, "tc")
	ctx := context.Background()

	record := &originChallengeRecord{
		CodeHash:    internal.HashCode("123456"),
		IssuedAt:    time.Now().Unix(),
		ChallengeID: "ch-1",
	}
	if err := s.Save(ctx, "u1", "o", record, 10*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	mr.FastForward(11 * time.Minute)

	if _, err := s.Get(ctx, "u1", "o"); !errors.Is(err, errChallengeNotFound) {
		t.Fatalf("expired challenge should be gone, got %v", err)
	}
}

func TestChallengeDeleteIsIdempotent(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	s := newChallengeStore(rdb, "tc")
	ctx := context.Background()

	if err := s.Delete(ctx, "u1", "o"); err != nil {
		t.Fatalf("Delete on absent key failed: %v", err)
	}
}
