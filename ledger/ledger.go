package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by FindActiveByOrigin when no active block exists.
var ErrNotFound = errors.New("ledger: no active block for origin")

// Row is one blocked-origin record. Expired rows are logically void even
// before they are physically purged: every read filters on ExpiresAt.
type Row struct {
	Origin           string
	RelatedAccountID string
	Reason           string
	BlockedAt        time.Time
	ExpiresAt        time.Time
}

// ActiveAt reports whether the row blocks its origin at the given instant.
func (r Row) ActiveAt(now time.Time) bool {
	return r.ExpiresAt.After(now)
}

// Store is the durable ban ledger contract. Insert is idempotent with
// respect to the at-most-one-active-block-per-origin invariant: inserting an
// origin that already has an active block is treated as success, since the
// desired end state already holds.
type Store interface {
	FindActiveByOrigin(ctx context.Context, origin string, now time.Time) (Row, error)
	Insert(ctx context.Context, row Row) error
	DeleteByOrigin(ctx context.Context, origin string) error
}
