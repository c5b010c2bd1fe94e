package ledger

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local [Store] for tests and single-node deployments.
type Memory struct {
	mu   sync.Mutex
	rows map[string]Row
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{rows: make(map[string]Row)}
}

// FindActiveByOrigin implements [Store].
func (s *Memory) FindActiveByOrigin(_ context.Context, origin string, now time.Time) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[origin]
	if !ok || !row.ActiveAt(now) {
		return Row{}, ErrNotFound
	}
	return row, nil
}

// Insert implements [Store]. An existing active row wins; an expired row is
// replaced.
func (s *Memory) Insert(_ context.Context, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.rows[row.Origin]; ok && existing.ActiveAt(row.BlockedAt) {
		return nil
	}
	s.rows[row.Origin] = row
	return nil
}

// DeleteByOrigin implements [Store].
func (s *Memory) DeleteByOrigin(_ context.Context, origin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rows, origin)
	return nil
}
