// Package internal contains helper utilities that are intentionally private
// to trustcore, including secure verification-code generation.
//
// # Sub-packages
//
//   - limiters — the attempt-counting limiter behind the brute-force guard
//   - rate — core Redis-backed fixed-window rate limit primitives
//
// # What this package must NOT do
//
//   - Export types that appear in the public trustcore API.
//   - Be imported by any package outside the trustcore module.
package internal
