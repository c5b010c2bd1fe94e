package trustcore

import (
	"context"
	"fmt"
	"log"
)

// actionVerifyOrigin is the action type charged by the origin challenge flow.
// Callers may charge their own action types ("delete", "payout", ...) for any
// code-confirmed operation they gate through the guard.
const actionVerifyOrigin = "origin_verify"

// RecordVerificationFailure charges one failed one-time-code attempt against
// (account, action, target) and returns how many attempts remain in the
// current window. The attempt that reaches the configured maximum trips the
// guard: the account is banned for the configured duration under the
// compromise reason and ErrVerificationAttemptsExceeded is returned.
//
// The counter increment is atomic in the backing store, so concurrent
// failures observe distinct counts; resetting the counter before banning
// keeps the threshold branch idempotent across racing callers.
func (e *Engine) RecordVerificationFailure(ctx context.Context, account *Account, action, target string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	if account == nil {
		return 0, ErrAccountNotFound
	}

	opctx, cancel := e.opCtx(ctx)
	count, err := e.attempts.RecordFailure(opctx, account.ID, action, target)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	max := int64(e.config.VerificationGuard.MaxAttempts)
	if count < max {
		return int(max - count), nil
	}

	// Drop the counter before banning so the window is clean if the ban is
	// ever lifted early.
	if err := e.ResetVerificationAttempts(ctx, account, action, target); err != nil {
		log.Printf("trustcore: attempt counter reset failed for account %s: %v", account.ID, err)
	}

	e.metricInc(MetricVerificationGuardTripped)
	e.emitAudit(ctx, auditEventVerificationGuardTripped, false, account.ID, "", ErrVerificationAttemptsExceeded, func() map[string]string {
		return map[string]string{"action": action, "target": target}
	})

	if err := e.AddSuspicion(ctx, account.ID, "verification guard tripped", suspicionPointsGuardTrip); err != nil {
		log.Printf("trustcore: suspicion update failed for account %s: %v", account.ID, err)
	}

	guard := e.config.VerificationGuard
	if err := e.Ban(ctx, account.ID, guard.BanReason, guard.BanDuration); err != nil {
		return 0, err
	}

	if e.notifier != nil {
		opctx, cancel := e.opCtx(ctx)
		err := e.notifier.Notify(opctx, account.ID,
			"Your account was temporarily locked after repeated failed verification attempts.")
		cancel()
		if err != nil {
			log.Printf("trustcore: guard notification failed for account %s: %v", account.ID, err)
		}
	}

	return 0, ErrVerificationAttemptsExceeded
}

// ResetVerificationAttempts clears the failure counter for (account, action,
// target). Called on success; the counter's TTL otherwise clears it when the
// window lapses.
func (e *Engine) ResetVerificationAttempts(ctx context.Context, account *Account, action, target string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if account == nil {
		return ErrAccountNotFound
	}

	opctx, cancel := e.opCtx(ctx)
	defer cancel()
	if err := e.attempts.Reset(opctx, account.ID, action, target); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// VerificationAttempts returns the current failure count for (account,
// action, target) without charging an attempt.
func (e *Engine) VerificationAttempts(ctx context.Context, account *Account, action, target string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	if account == nil {
		return 0, ErrAccountNotFound
	}

	opctx, cancel := e.opCtx(ctx)
	defer cancel()
	count, err := e.attempts.Attempts(opctx, account.ID, action, target)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}
