// Package rate provides the Redis-backed fixed-window counter primitive under
// every trustcore limiter.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on the first hit. The
// increment is a single store operation; callers never reconstruct a count
// with a separate GET followed by a conditional SET.
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (route classes, role ceilings — those
//     live in the root package).
//   - Be imported outside the trustcore module.
package rate
