package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the DDL for the blocked_origins table. The unique index on
// origin is what lets the storage layer arbitrate concurrent inserts.
const Schema = `
CREATE TABLE IF NOT EXISTS blocked_origins (
	origin             text PRIMARY KEY,
	related_account_id text,
	reason             text NOT NULL,
	blocked_at         timestamptz NOT NULL,
	expires_at         timestamptz NOT NULL
);
`

// Postgres is the production [Store] implementation.
type Postgres struct {
	pool *pgxpool.Pool
}

// Open connects a pgx pool and verifies connectivity.
func Open(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse ledger dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open ledger pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping ledger: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Close releases the underlying pool.
func (s *Postgres) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// FindActiveByOrigin returns the active block for an origin, filtering out
// expired rows at read time.
func (s *Postgres) FindActiveByOrigin(ctx context.Context, origin string, now time.Time) (Row, error) {
	const q = `
		SELECT origin, related_account_id, reason, blocked_at, expires_at
		FROM blocked_origins
		WHERE origin = $1 AND expires_at > $2
	`

	var (
		row       Row
		relatedID *string
	)
	err := s.pool.QueryRow(ctx, q, origin, now).Scan(
		&row.Origin,
		&relatedID,
		&row.Reason,
		&row.BlockedAt,
		&row.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Row{}, ErrNotFound
		}
		return Row{}, fmt.Errorf("find blocked origin: %w", err)
	}
	if relatedID != nil {
		row.RelatedAccountID = *relatedID
	}
	return row, nil
}

// Insert records a block. A unique violation means another instance already
// blocked this origin; if that row has expired it is refreshed in place,
// otherwise the insert is treated as success.
func (s *Postgres) Insert(ctx context.Context, row Row) error {
	const insertQ = `
		INSERT INTO blocked_origins (origin, related_account_id, reason, blocked_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	var relatedID any
	if row.RelatedAccountID != "" {
		relatedID = row.RelatedAccountID
	}
	_, err := s.pool.Exec(ctx, insertQ,
		row.Origin,
		relatedID,
		row.Reason,
		row.BlockedAt,
		row.ExpiresAt,
	)
	if err == nil {
		return nil
	}

	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		const refreshQ = `
			UPDATE blocked_origins
			SET related_account_id = $2, reason = $3, blocked_at = $4, expires_at = $5
			WHERE origin = $1 AND expires_at <= $4
		`
		if _, uerr := s.pool.Exec(ctx, refreshQ,
			row.Origin,
			relatedID,
			row.Reason,
			row.BlockedAt,
			row.ExpiresAt,
		); uerr != nil {
			return fmt.Errorf("refresh blocked origin: %w", uerr)
		}
		return nil
	}

	return fmt.Errorf("insert blocked origin: %w", err)
}

// DeleteByOrigin removes any block for an origin. Missing rows are not an
// error.
func (s *Postgres) DeleteByOrigin(ctx context.Context, origin string) error {
	const q = `DELETE FROM blocked_origins WHERE origin = $1`

	if _, err := s.pool.Exec(ctx, q, origin); err != nil {
		return fmt.Errorf("delete blocked origin: %w", err)
	}
	return nil
}

// PurgeExpired physically removes rows that are already logically void.
// Housekeeping only; correctness never depends on it running.
func (s *Postgres) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM blocked_origins WHERE expires_at <= $1`

	tag, err := s.pool.Exec(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("purge expired blocks: %w", err)
	}
	return tag.RowsAffected(), nil
}
