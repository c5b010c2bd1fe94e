package trustcore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/skillforge/trustcore/ledger"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

// mockAccountStore is an in-memory AccountStore. Accounts are stored by
// value so mutations only stick after SaveAccount, like a real backend.
type mockAccountStore struct {
	mu       sync.Mutex
	accounts map[string]Account
	saveErr  error
	getErr   error
}

func newMockAccountStore(accounts ...*Account) *mockAccountStore {
	s := &mockAccountStore{accounts: make(map[string]Account)}
	for _, a := range accounts {
		s.accounts[a.ID] = *a
	}
	return s
}

func (s *mockAccountStore) GetAccountByID(_ context.Context, id string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getErr != nil {
		return nil, s.getErr
	}
	a, ok := s.accounts[id]
	if !ok {
		return nil, errors.New("no such account")
	}
	copied := a
	return &copied, nil
}

func (s *mockAccountStore) SaveAccount(_ context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return s.saveErr
	}
	s.accounts[account.ID] = *account
	return nil
}

func (s *mockAccountStore) get(t *testing.T, id string) Account {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		t.Fatalf("account %s not in store", id)
	}
	return a
}

// mockEngagementStore records cascade calls and serves canned engagements.
type mockEngagementStore struct {
	mu sync.Mutex

	assigned map[string][]Engagement // helperID -> in-progress engagements
	authored map[string][]Engagement // authorID -> open engagements

	reopenCalls []string
	cancelCalls []string
}

func newMockEngagementStore() *mockEngagementStore {
	return &mockEngagementStore{
		assigned: make(map[string][]Engagement),
		authored: make(map[string][]Engagement),
	}
}

func (s *mockEngagementStore) ReopenAssignedTo(_ context.Context, helperID, _ string) ([]Engagement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reopenCalls = append(s.reopenCalls, helperID)
	out := s.assigned[helperID]
	delete(s.assigned, helperID) // idempotent: second call affects nothing
	return out, nil
}

func (s *mockEngagementStore) CancelAuthoredBy(_ context.Context, authorID, _ string) ([]Engagement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelCalls = append(s.cancelCalls, authorID)
	out := s.authored[authorID]
	delete(s.authored, authorID)
	return out, nil
}

// mockNotifier captures every delivered message.
type mockNotifier struct {
	mu       sync.Mutex
	err      error
	messages map[string][]string
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{messages: make(map[string][]string)}
}

func (n *mockNotifier) Notify(_ context.Context, accountID, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.err != nil {
		return n.err
	}
	n.messages[accountID] = append(n.messages[accountID], message)
	return nil
}

func (n *mockNotifier) sent(accountID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages[accountID]...)
}

type testEngineOptions struct {
	config      *Config
	engagements EngagementStore
	notifier    Notifier
	banLedger   ledger.Store
}

func newTestEngine(t *testing.T, rdb *redis.Client, accounts AccountStore, opts testEngineOptions) *Engine {
	t.Helper()

	builder := New().
		WithRedis(rdb).
		WithAccountStore(accounts)

	if opts.config != nil {
		builder = builder.WithConfig(*opts.config)
	}
	if opts.engagements != nil {
		builder = builder.WithEngagementStore(opts.engagements)
	}
	if opts.notifier != nil {
		builder = builder.WithNotifier(opts.notifier)
	}
	if opts.banLedger != nil {
		builder = builder.WithLedger(opts.banLedger)
	}

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine
}

func testAccount(id string) *Account {
	return &Account{
		ID:                 id,
		RegistrationOrigin: "203.0.113.10",
		Verified:           true,
		Student:            true,
	}
}

func originCtx(origin string) context.Context {
	return WithClientOrigin(context.Background(), origin)
}

func banExpiry(t *testing.T, store *mockAccountStore, id string) time.Time {
	t.Helper()
	return store.get(t, id).Ban.ExpiresAt
}
