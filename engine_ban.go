package trustcore

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Suspicion weights for the enforcement events this package raises itself.
const (
	suspicionPointsGuardTrip    = 25
	suspicionPointsMultiAccount = 50
)

// Ban places the account under a ban. A zero duration means permanent.
// Admin accounts are immune and banning an already banned account is a
// no-op; both cases return nil so concurrent enforcement paths converge on
// the same end state without error handling.
//
// Permanent bans and bans longer than the configured cascade threshold
// additionally cascade into the account's in-flight engagements. Shorter
// bans leave engagements untouched.
func (e *Engine) Ban(ctx context.Context, accountID, reason string, duration time.Duration) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if accountID == "" {
		return ErrAccountNotFound
	}

	opctx, cancel := e.opCtx(ctx)
	account, err := e.accounts.GetAccountByID(opctx, accountID)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if account == nil {
		return ErrAccountNotFound
	}

	if account.Admin {
		return nil
	}

	now := time.Now().UTC()
	if account.Ban.ActiveAt(now) {
		return nil
	}

	account.Ban = BanState{
		Banned:   true,
		Reason:   reason,
		BannedAt: now,
	}
	if duration > 0 {
		account.Ban.ExpiresAt = now.Add(duration)
	}

	opctx, cancel = e.opCtx(ctx)
	err = e.accounts.SaveAccount(opctx, account)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricAccountBanned)
	e.emitAudit(ctx, auditEventAccountBanned, true, account.ID, "", nil, func() map[string]string {
		m := map[string]string{"reason": reason}
		if duration > 0 {
			m["duration"] = duration.String()
		} else {
			m["duration"] = "permanent"
		}
		return m
	})

	if duration == 0 || duration > e.config.Cascade.MinBanDurationToCascade {
		e.applyBanEffects(ctx, account, reason)
	}

	return nil
}

// applyBanEffects releases the banned account's in-flight engagements and
// notifies the counterparties. Every step is best effort: the ban itself is
// already committed, and both engagement operations are idempotent, so a
// partial cascade can be re-driven by a later ban attempt without double
// effects.
func (e *Engine) applyBanEffects(ctx context.Context, account *Account, reason string) {
	if e.engagements == nil {
		return
	}

	cascaded := false

	if account.Helper {
		opctx, cancel := e.opCtx(ctx)
		reopened, err := e.engagements.ReopenAssignedTo(opctx, account.ID, reason)
		cancel()
		if err != nil {
			e.metricInc(MetricCascadeSideEffectFailure)
			log.Printf("trustcore: engagement reopen failed for helper %s: %v", account.ID, err)
		} else {
			cascaded = cascaded || len(reopened) > 0
			for _, eng := range reopened {
				e.notifyCounterpart(ctx, eng.AuthorID,
					"Your tutoring request was reopened because the assigned helper is no longer available.")
			}
		}
	}

	if account.Student {
		opctx, cancel := e.opCtx(ctx)
		cancelled, err := e.engagements.CancelAuthoredBy(opctx, account.ID, reason)
		cancel()
		if err != nil {
			e.metricInc(MetricCascadeSideEffectFailure)
			log.Printf("trustcore: engagement cancel failed for author %s: %v", account.ID, err)
		} else {
			cascaded = cascaded || len(cancelled) > 0
			for _, eng := range cancelled {
				if eng.HelperID == "" {
					continue
				}
				e.notifyCounterpart(ctx, eng.HelperID,
					"A tutoring engagement you were assigned to has been cancelled.")
			}
		}
	}

	if cascaded {
		e.metricInc(MetricBanCascadeApplied)
		e.emitAudit(ctx, auditEventBanCascadeApplied, true, account.ID, "", nil, func() map[string]string {
			return map[string]string{"reason": reason}
		})
	}
}

func (e *Engine) notifyCounterpart(ctx context.Context, accountID, message string) {
	if e.notifier == nil || accountID == "" {
		return
	}

	opctx, cancel := e.opCtx(ctx)
	defer cancel()
	if err := e.notifier.Notify(opctx, accountID, message); err != nil {
		log.Printf("trustcore: counterpart notification failed for account %s: %v", accountID, err)
	}
}

// Unban lifts the account's ban. Unbanning an account that is not banned is
// a no-op. Engagements released by a cascade stay released; the cascade is
// not replayed in reverse.
func (e *Engine) Unban(ctx context.Context, accountID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if accountID == "" {
		return ErrAccountNotFound
	}

	opctx, cancel := e.opCtx(ctx)
	account, err := e.accounts.GetAccountByID(opctx, accountID)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if account == nil {
		return ErrAccountNotFound
	}

	if !account.Ban.Banned {
		return nil
	}

	account.Ban = BanState{}

	opctx, cancel = e.opCtx(ctx)
	err = e.accounts.SaveAccount(opctx, account)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricAccountUnbanned)
	e.emitAudit(ctx, auditEventAccountUnbanned, true, account.ID, "", nil, nil)

	return nil
}

// AddSuspicion appends one entry to the account's risk log and raises its
// score. Suspicion is advisory: nothing in this package acts on the score,
// it exists for moderator review queues.
func (e *Engine) AddSuspicion(ctx context.Context, accountID, reason string, points int) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if accountID == "" {
		return ErrAccountNotFound
	}

	opctx, cancel := e.opCtx(ctx)
	account, err := e.accounts.GetAccountByID(opctx, accountID)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if account == nil {
		return ErrAccountNotFound
	}

	account.SuspicionScore += points
	account.SuspicionLog = append(account.SuspicionLog, SuspicionEntry{
		Reason:    reason,
		Points:    points,
		Timestamp: time.Now().UTC(),
	})

	opctx, cancel = e.opCtx(ctx)
	err = e.accounts.SaveAccount(opctx, account)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricSuspicionAdded)
	e.emitAudit(ctx, auditEventSuspicionAdded, true, account.ID, "", nil, func() map[string]string {
		return map[string]string{"reason": reason, "points": fmt.Sprintf("%d", points)}
	})

	return nil
}
