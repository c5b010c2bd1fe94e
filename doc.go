// Package trustcore provides the abuse-prevention and trust-enforcement engine
// for a marketplace backend: Redis-backed rate limiting, origin trust tracking,
// verification brute-force guarding, and multi-account detection with ban
// cascades into in-flight domain work.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// trustcore is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (Decision, Account, MetricsSnapshot, etc.). All internal
// coordination — counter atomicity, audit dispatch, key layout — lives under
// internal/ and is never exported. The durable ban ledger lives in the ledger
// subpackage behind [ledger.Store].
//
// # What this package must NOT do
//
//   - Expose Redis clients, key layouts, or store internals in its public API.
//   - Know about HTTP: callers receive a [Decision] with a [ReasonCode] and
//     render their own responses.
//   - Own marketplace CRUD: accounts, engagements, and notifications are
//     reached only through the narrow interfaces in types.go.
//
// # Failure contract
//
// Everything that gates access fails closed: a store error during a rate,
// trust, or multi-account check denies the request. Cascade side effects
// (reassignment, notification) are best-effort; once a ban is committed it is
// never rolled back by a later side-effect failure.
package trustcore
