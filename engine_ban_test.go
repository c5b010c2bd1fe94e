package trustcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestShortBanDoesNotCascade(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	helper := testAccount("h1")
	helper.Student = false
	helper.Helper = true
	store := newMockAccountStore(helper)
	engagements := newMockEngagementStore()
	engagements.assigned["h1"] = []Engagement{{ID: "e1", AuthorID: "u2", HelperID: "h1"}}
	engine := newTestEngine(t, rdb, store, testEngineOptions{engagements: engagements})

	if err := engine.Ban(context.Background(), "h1", "abusive messages", 24*time.Hour); err != nil {
		t.Fatalf("Ban failed: %v", err)
	}

	if !store.get(t, "h1").Ban.Banned {
		t.Fatal("account should be banned")
	}
	if len(engagements.reopenCalls) != 0 {
		t.Fatal("a 24h ban must not touch engagements")
	}
}

func TestLongBanCascadesForHelper(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	helper := testAccount("h1")
	helper.Student = false
	helper.Helper = true
	store := newMockAccountStore(helper)
	engagements := newMockEngagementStore()
	engagements.assigned["h1"] = []Engagement{
		{ID: "e1", AuthorID: "u2", HelperID: "h1"},
		{ID: "e2", AuthorID: "u3", HelperID: "h1"},
	}
	notifier := newMockNotifier()
	engine := newTestEngine(t, rdb, store, testEngineOptions{engagements: engagements, notifier: notifier})

	if err := engine.Ban(context.Background(), "h1", "fraud", 72*time.Hour); err != nil {
		t.Fatalf("Ban failed: %v", err)
	}

	if len(engagements.reopenCalls) != 1 || engagements.reopenCalls[0] != "h1" {
		t.Fatalf("expected one reopen for h1, got %v", engagements.reopenCalls)
	}
	for _, author := range []string{"u2", "u3"} {
		if len(notifier.sent(author)) != 1 {
			t.Fatalf("author %s should be notified about the reopened request", author)
		}
	}
}

func TestPermanentBanCascadesForStudent(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	student := testAccount("u1")
	store := newMockAccountStore(student)
	engagements := newMockEngagementStore()
	engagements.authored["u1"] = []Engagement{
		{ID: "e1", AuthorID: "u1", HelperID: "h2"},
		{ID: "e2", AuthorID: "u1"}, // unassigned, nobody to notify
	}
	notifier := newMockNotifier()
	engine := newTestEngine(t, rdb, store, testEngineOptions{engagements: engagements, notifier: notifier})

	if err := engine.Ban(context.Background(), "u1", "ban evasion", 0); err != nil {
		t.Fatalf("Ban failed: %v", err)
	}

	saved := store.get(t, "u1")
	if !saved.Ban.Banned || !saved.Ban.ExpiresAt.IsZero() {
		t.Fatalf("expected a permanent ban, got %+v", saved.Ban)
	}
	if len(engagements.cancelCalls) != 1 {
		t.Fatalf("expected one cancel call, got %v", engagements.cancelCalls)
	}
	if len(notifier.sent("h2")) != 1 {
		t.Fatal("assigned helper should be notified about the cancellation")
	}
}

func TestBanIsIdempotentOnBannedAccount(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	account := testAccount("u1")
	store := newMockAccountStore(account)
	engine := newTestEngine(t, rdb, store, testEngineOptions{})

	ctx := context.Background()
	if err := engine.Ban(ctx, "u1", "first", 72*time.Hour); err != nil {
		t.Fatalf("Ban failed: %v", err)
	}
	first := banExpiry(t, store, "u1")

	if err := engine.Ban(ctx, "u1", "second", 0); err != nil {
		t.Fatalf("second Ban failed: %v", err)
	}

	saved := store.get(t, "u1")
	if saved.Ban.Reason != "first" || !saved.Ban.ExpiresAt.Equal(first) {
		t.Fatalf("existing ban must not be overwritten, got %+v", saved.Ban)
	}
}

func TestAdminsAreImmuneToBans(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	admin := testAccount("a1")
	admin.Admin = true
	store := newMockAccountStore(admin)
	engine := newTestEngine(t, rdb, store, testEngineOptions{})

	if err := engine.Ban(context.Background(), "a1", "anything", 0); err != nil {
		t.Fatalf("Ban failed: %v", err)
	}
	if store.get(t, "a1").Ban.Banned {
		t.Fatal("admin accounts must never be banned by this subsystem")
	}
}

func TestExpiredBanIsReplaceable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	account := testAccount("u1")
	account.Ban = BanState{
		Banned:    true,
		Reason:    "old",
		BannedAt:  time.Now().Add(-48 * time.Hour),
		ExpiresAt: time.Now().Add(-24 * time.Hour),
	}
	store := newMockAccountStore(account)
	engine := newTestEngine(t, rdb, store, testEngineOptions{})

	if err := engine.Ban(context.Background(), "u1", "new", 24*time.Hour); err != nil {
		t.Fatalf("Ban failed: %v", err)
	}
	if got := store.get(t, "u1").Ban.Reason; got != "new" {
		t.Fatalf("expired ban should be replaced, reason %q", got)
	}
}

func TestUnbanIsIdempotent(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	account := testAccount("u1")
	store := newMockAccountStore(account)
	engine := newTestEngine(t, rdb, store, testEngineOptions{})

	ctx := context.Background()
	if err := engine.Ban(ctx, "u1", "mistake", 0); err != nil {
		t.Fatalf("Ban failed: %v", err)
	}
	if err := engine.Unban(ctx, "u1"); err != nil {
		t.Fatalf("Unban failed: %v", err)
	}
	if store.get(t, "u1").Ban.Banned {
		t.Fatal("account should be unbanned")
	}
	if err := engine.Unban(ctx, "u1"); err != nil {
		t.Fatalf("second Unban failed: %v", err)
	}
}

func TestBanUnknownAccount(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	store := newMockAccountStore()
	engine := newTestEngine(t, rdb, store, testEngineOptions{})

	err := engine.Ban(context.Background(), "ghost", "anything", 0)
	if !errors.Is(err, ErrStoreUnavailable) && !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected a lookup failure, got %v", err)
	}
}

func TestAddSuspicionAccumulates(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	account := testAccount("u1")
	store := newMockAccountStore(account)
	engine := newTestEngine(t, rdb, store, testEngineOptions{})

	ctx := context.Background()
	if err := engine.AddSuspicion(ctx, "u1", "rapid messaging", 10); err != nil {
		t.Fatalf("AddSuspicion failed: %v", err)
	}
	if err := engine.AddSuspicion(ctx, "u1", "reported by peer", 25); err != nil {
		t.Fatalf("AddSuspicion failed: %v", err)
	}

	saved := store.get(t, "u1")
	if saved.SuspicionScore != 35 {
		t.Fatalf("expected score 35, got %d", saved.SuspicionScore)
	}
	if len(saved.SuspicionLog) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(saved.SuspicionLog))
	}
}
