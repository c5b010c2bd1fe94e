// Package ledger is the durable, authoritative record of quarantined origins.
//
// The ephemeral quarantine flag in Redis is a fast-path cache; this ledger is
// the source of truth consulted on cache miss and used for audit. The storage
// layer — not application logic — enforces the invariant that at most one
// active block exists per origin, so concurrent inserts from multiple process
// instances converge on a single row.
//
// # Implementations
//
//   - [Postgres] — production backend on jackc/pgx/v5.
//   - [Memory] — process-local backend for tests and single-node deployments.
package ledger
