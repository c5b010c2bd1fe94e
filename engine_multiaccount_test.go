package trustcore

import (
	"context"
	"testing"
	"time"

	"github.com/skillforge/trustcore/ledger"
)

func TestSingleAccountPerOriginIsAllowed(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	account := testAccount("u1")
	store := newMockAccountStore(account)
	engine := newTestEngine(t, rdb, store, testEngineOptions{banLedger: ledger.NewMemory()})

	decision, err := engine.CheckMultiAccount(context.Background(), "198.51.100.7", account)
	if err != nil {
		t.Fatalf("CheckMultiAccount failed: %v", err)
	}
	if !decision.Allow {
		t.Fatalf("single account should be allowed, got %+v", decision)
	}
}

func TestAccountsSharingOriginAreAllBanned(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	first := testAccount("u1")
	second := testAccount("u2")
	third := testAccount("u3")
	fourth := testAccount("u4")
	store := newMockAccountStore(first, second, third, fourth)
	banLedger := ledger.NewMemory()
	engine := newTestEngine(t, rdb, store, testEngineOptions{banLedger: banLedger})

	ctx := context.Background()
	origin := "198.51.100.7"

	if decision, err := engine.CheckMultiAccount(ctx, origin, first); err != nil || !decision.Allow {
		t.Fatalf("first account should pass: %+v %v", decision, err)
	}

	for _, account := range []*Account{second, third} {
		decision, err := engine.CheckMultiAccount(ctx, origin, account)
		if err != nil {
			t.Fatalf("CheckMultiAccount failed: %v", err)
		}
		if decision.Allow || decision.Reason != ReasonOriginBlocked {
			t.Fatalf("account %s: expected origin_blocked denial, got %+v", account.ID, decision)
		}
	}

	for _, id := range []string{"u1", "u2", "u3"} {
		saved := store.get(t, id)
		if !saved.Ban.Banned {
			t.Fatalf("account %s should be banned", id)
		}
		if saved.Ban.Reason != "suspected multi-account" {
			t.Fatalf("account %s: unexpected ban reason %q", id, saved.Ban.Reason)
		}
		if !saved.Ban.ExpiresAt.IsZero() {
			t.Fatalf("account %s: multi-account bans are permanent, got expiry %v", id, saved.Ban.ExpiresAt)
		}
	}

	row, err := banLedger.FindActiveByOrigin(ctx, origin, time.Now())
	if err != nil {
		t.Fatalf("expected a ledger row for %s: %v", origin, err)
	}
	if row.Origin != origin {
		t.Fatalf("unexpected ledger row %+v", row)
	}

	// Once the origin flag is set, a latecomer is banned off the flag
	// alone; the origin set is never consulted or grown again.
	decision, err := engine.CheckMultiAccount(ctx, origin, fourth)
	if err != nil {
		t.Fatalf("CheckMultiAccount failed: %v", err)
	}
	if decision.Allow || decision.Reason != ReasonOriginBlocked {
		t.Fatalf("expected origin_blocked denial, got %+v", decision)
	}
	if !store.get(t, "u4").Ban.Banned {
		t.Fatal("latecomer on flagged origin should be banned")
	}
	members, err := engine.origins.Accounts(ctx, origin)
	if err != nil {
		t.Fatalf("Accounts failed: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("flagged origin must not grow its account set, got %v", members)
	}
}

func TestQuarantinedOriginFastPathBansNewcomer(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	first := testAccount("u1")
	second := testAccount("u2")
	third := testAccount("u3")
	store := newMockAccountStore(first, second, third)
	engine := newTestEngine(t, rdb, store, testEngineOptions{banLedger: ledger.NewMemory()})

	ctx := context.Background()
	origin := "198.51.100.7"

	engine.CheckMultiAccount(ctx, origin, first)
	engine.CheckMultiAccount(ctx, origin, second)

	// The third account never enters the origin set; the quarantine flag
	// short-circuits it.
	decision, err := engine.CheckMultiAccount(ctx, origin, third)
	if err != nil {
		t.Fatalf("CheckMultiAccount failed: %v", err)
	}
	if decision.Allow || decision.Reason != ReasonOriginBlocked {
		t.Fatalf("expected origin_blocked denial, got %+v", decision)
	}
	if !store.get(t, "u3").Ban.Banned {
		t.Fatal("newcomer on quarantined origin should be banned")
	}
}

func TestQuarantineFlagRebuiltFromLedger(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	account := testAccount("u1")
	store := newMockAccountStore(account)
	banLedger := ledger.NewMemory()
	engine := newTestEngine(t, rdb, store, testEngineOptions{banLedger: banLedger})

	ctx := context.Background()
	origin := "198.51.100.7"

	now := time.Now().UTC()
	err := banLedger.Insert(ctx, ledger.Row{
		Origin:           origin,
		RelatedAccountID: "u9",
		Reason:           "suspected multi-account",
		BlockedAt:        now.Add(-time.Hour),
		ExpiresAt:        now.Add(23 * time.Hour),
	})
	if err != nil {
		t.Fatalf("ledger Insert failed: %v", err)
	}

	// Simulate a cache flush: no flag exists, only the ledger row.
	mr.FlushAll()

	decision, err := engine.CheckMultiAccount(ctx, origin, account)
	if err != nil {
		t.Fatalf("CheckMultiAccount failed: %v", err)
	}
	if decision.Allow || decision.Reason != ReasonOriginBlocked {
		t.Fatalf("ledger hit should deny, got %+v", decision)
	}

	// The flag is re-armed for the fast path.
	quarantined, err := engine.isOriginQuarantined(ctx, origin)
	if err != nil {
		t.Fatalf("isOriginQuarantined failed: %v", err)
	}
	if !quarantined {
		t.Fatal("expected flag to be rebuilt from ledger")
	}
}

func TestExpiredLedgerRowDoesNotQuarantine(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	account := testAccount("u1")
	store := newMockAccountStore(account)
	banLedger := ledger.NewMemory()
	engine := newTestEngine(t, rdb, store, testEngineOptions{banLedger: banLedger})

	ctx := context.Background()
	origin := "198.51.100.7"

	now := time.Now().UTC()
	err := banLedger.Insert(ctx, ledger.Row{
		Origin:    origin,
		Reason:    "suspected multi-account",
		BlockedAt: now.Add(-48 * time.Hour),
		ExpiresAt: now.Add(-24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("ledger Insert failed: %v", err)
	}

	decision, err := engine.CheckMultiAccount(ctx, origin, account)
	if err != nil {
		t.Fatalf("CheckMultiAccount failed: %v", err)
	}
	if !decision.Allow {
		t.Fatalf("expired block must not deny, got %+v", decision)
	}
}

func TestModeratorsBypassMultiAccountChecks(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	user := testAccount("u1")
	moderator := testAccount("m1")
	moderator.Moderator = true
	store := newMockAccountStore(user, moderator)
	engine := newTestEngine(t, rdb, store, testEngineOptions{banLedger: ledger.NewMemory()})

	ctx := context.Background()
	origin := "198.51.100.7"

	engine.CheckMultiAccount(ctx, origin, user)

	decision, err := engine.CheckMultiAccount(ctx, origin, moderator)
	if err != nil {
		t.Fatalf("CheckMultiAccount failed: %v", err)
	}
	if !decision.Allow {
		t.Fatalf("moderator should bypass, got %+v", decision)
	}
	if store.get(t, "u1").Ban.Banned {
		t.Fatal("moderator traffic must not trigger detection for others")
	}
}

func TestLiftOriginQuarantine(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	first := testAccount("u1")
	second := testAccount("u2")
	fresh := testAccount("u4")
	store := newMockAccountStore(first, second, fresh)
	banLedger := ledger.NewMemory()
	engine := newTestEngine(t, rdb, store, testEngineOptions{banLedger: banLedger})

	ctx := context.Background()
	origin := "198.51.100.7"

	engine.CheckMultiAccount(ctx, origin, first)
	engine.CheckMultiAccount(ctx, origin, second)

	if err := engine.LiftOriginQuarantine(ctx, origin); err != nil {
		t.Fatalf("LiftOriginQuarantine failed: %v", err)
	}

	// The origin set may still hold the old members, so a fresh account
	// re-triggers detection; what must be gone is the standing block.
	quarantined, err := engine.isOriginQuarantined(ctx, origin)
	if err != nil {
		t.Fatalf("isOriginQuarantined failed: %v", err)
	}
	if quarantined {
		t.Fatal("quarantine should be lifted")
	}
}
