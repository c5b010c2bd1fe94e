package trustcore

import "errors"

var (
	// ErrEngineNotReady is an exported constant or variable used by the trust engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrRateLimited is an exported constant or variable used by the trust engine.
	ErrRateLimited = errors.New("rate limited")
	// ErrOriginBlocked is an exported constant or variable used by the trust engine.
	ErrOriginBlocked = errors.New("origin blocked")
	// ErrVerificationRequired is an exported constant or variable used by the trust engine.
	ErrVerificationRequired = errors.New("origin verification required")
	// ErrBanned is an exported constant or variable used by the trust engine.
	ErrBanned = errors.New("account banned")
	// ErrAccountNotFound is an exported constant or variable used by the trust engine.
	ErrAccountNotFound = errors.New("account not found")
	// ErrChallengeNotFound is an exported constant or variable used by the trust engine.
	ErrChallengeNotFound = errors.New("origin verification challenge not found")
	// ErrChallengeInvalid is an exported constant or variable used by the trust engine.
	ErrChallengeInvalid = errors.New("origin verification code invalid")
	// ErrVerificationAttemptsExceeded is an exported constant or variable used by the trust engine.
	ErrVerificationAttemptsExceeded = errors.New("verification attempts exceeded")
	// ErrStoreUnavailable is an exported constant or variable used by the trust engine.
	ErrStoreUnavailable = errors.New("ephemeral store unavailable")
	// ErrLedgerUnavailable is an exported constant or variable used by the trust engine.
	ErrLedgerUnavailable = errors.New("ban ledger unavailable")
)
