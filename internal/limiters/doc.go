// Package limiters provides the attempt-counting limiter behind the
// verification brute-force guard.
//
// # Limiters
//
//   - [AttemptLimiter] — per (subject, action, target) failure counter with a
//     rolling window, used to escalate repeated wrong one-time codes into an
//     account suspension.
//
// All limiters are nil-safe: calling any method on a nil receiver behaves as
// if the limiter were disabled.
//
// # Architecture boundaries
//
// The limiter owns its Redis key namespace and error types. Policy thresholds
// come from Config structs supplied at construction time; the limiter counts,
// the engine decides consequences.
//
// # What this package must NOT do
//
//   - Import trustcore or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting — engine flows decide consequences.
package limiters
