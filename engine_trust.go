package trustcore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/skillforge/trustcore/internal"
)

// trustedOriginRefreshInterval throttles LastUsedAt writes so a trusted
// origin hit does not turn every request into an account save.
const trustedOriginRefreshInterval = time.Hour

// IsTrustedOrigin reports whether the account may act from the given origin
// without verification. The registration origin is implicitly trusted and
// never occupies a slot in the trusted list.
func (e *Engine) IsTrustedOrigin(ctx context.Context, account *Account, origin string) (bool, error) {
	if e == nil {
		return false, ErrEngineNotReady
	}
	if account == nil || origin == "" {
		return false, nil
	}

	if origin == account.RegistrationOrigin {
		return true, nil
	}

	for i := range account.TrustedOrigins {
		entry := &account.TrustedOrigins[i]
		if entry.Origin != origin {
			continue
		}

		now := time.Now().UTC()
		if now.Sub(entry.LastUsedAt) > trustedOriginRefreshInterval {
			entry.LastUsedAt = now

			opctx, cancel := e.opCtx(ctx)
			err := e.accounts.SaveAccount(opctx, account)
			cancel()
			if err != nil {
				// Stale LastUsedAt only skews eviction order; the origin
				// stays trusted either way.
				log.Printf("trustcore: trusted origin refresh failed for account %s: %v", account.ID, err)
			}
		}

		return true, nil
	}

	return false, nil
}

// RecordTrustedOrigin adds the origin to the account's trusted list and
// persists the account. Re-recording a known origin only refreshes its
// LastUsedAt. When the list is full, the entry with the oldest LastUsedAt
// is evicted to make room.
func (e *Engine) RecordTrustedOrigin(ctx context.Context, account *Account, origin string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if account == nil {
		return ErrAccountNotFound
	}
	if origin == "" || origin == account.RegistrationOrigin {
		return nil
	}

	now := time.Now().UTC()

	found := false
	for i := range account.TrustedOrigins {
		if account.TrustedOrigins[i].Origin == origin {
			entry := &account.TrustedOrigins[i]
			entry.LastUsedAt = now
			if hint := userAgentFromContext(ctx); hint != "" {
				entry.AgentHint = hint
			}
			if hint := geoHintFromContext(ctx); hint != "" {
				entry.LocationHint = hint
			}
			found = true
			break
		}
	}

	if !found {
		if len(account.TrustedOrigins) >= e.config.Trust.MaxTrustedOrigins {
			evictOldestOrigin(account)
			e.metricInc(MetricTrustedOriginEvicted)
		}
		account.TrustedOrigins = append(account.TrustedOrigins, TrustedOrigin{
			Origin:       origin,
			AddedAt:      now,
			LastUsedAt:   now,
			AgentHint:    userAgentFromContext(ctx),
			LocationHint: geoHintFromContext(ctx),
		})
	}

	opctx, cancel := e.opCtx(ctx)
	defer cancel()
	if err := e.accounts.SaveAccount(opctx, account); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricTrustedOriginRecorded)
	e.emitAudit(ctx, auditEventTrustedOriginRecorded, true, account.ID, "", nil, func() map[string]string {
		return map[string]string{"origin": origin}
	})

	return nil
}

func evictOldestOrigin(account *Account) {
	if len(account.TrustedOrigins) == 0 {
		return
	}

	oldest := 0
	for i := 1; i < len(account.TrustedOrigins); i++ {
		if account.TrustedOrigins[i].LastUsedAt.Before(account.TrustedOrigins[oldest].LastUsedAt) {
			oldest = i
		}
	}

	account.TrustedOrigins = append(
		account.TrustedOrigins[:oldest],
		account.TrustedOrigins[oldest+1:]...,
	)
}

// BeginOriginVerification issues a short-lived one-time code for the given
// origin and delivers it through the configured notifier. The returned
// challenge id is opaque; the caller echoes it back only for logging, the
// (account, origin) pair is the real lookup key. Verifying an already
// trusted origin is a no-op that returns an empty challenge id.
func (e *Engine) BeginOriginVerification(ctx context.Context, account *Account, origin string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if account == nil {
		return "", ErrAccountNotFound
	}
	if origin == "" {
		return "", ErrChallengeInvalid
	}

	trusted, err := e.IsTrustedOrigin(ctx, account, origin)
	if err != nil {
		return "", err
	}
	if trusted {
		return "", nil
	}

	code, err := internal.NewVerificationCode(e.config.Trust.ChallengeDigits)
	if err != nil {
		return "", err
	}

	record := &originChallengeRecord{
		CodeHash:    internal.HashCode(code),
		IssuedAt:    time.Now().UTC().Unix(),
		ChallengeID: uuid.NewString(),
	}

	opctx, cancel := e.opCtx(ctx)
	err = e.challenges.Save(opctx, account.ID, origin, record, e.config.Trust.ChallengeTTL)
	cancel()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if e.notifier != nil {
		message := "Your origin verification code is " + code
		if hint := geoHintFromContext(ctx); hint != "" {
			message += " (sign-in attempt near " + hint + ")"
		}

		opctx, cancel = e.opCtx(ctx)
		err = e.notifier.Notify(opctx, account.ID, message)
		cancel()
		if err != nil {
			// Undeliverable codes are unusable codes. Roll the challenge
			// back so a retry starts clean.
			opctx, cancel = e.opCtx(ctx)
			_ = e.challenges.Delete(opctx, account.ID, origin)
			cancel()
			return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	e.metricInc(MetricOriginChallengeRequested)
	e.emitAudit(ctx, auditEventOriginChallengeRequested, true, account.ID, "", nil, func() map[string]string {
		return map[string]string{"origin": origin, "challenge_id": record.ChallengeID}
	})

	return record.ChallengeID, nil
}

// ConfirmOriginVerification checks the submitted code against the pending
// challenge for (account, origin). On a match the origin becomes trusted and
// the failure counter resets. A mismatch feeds the brute-force guard: the
// attempt that reaches the configured maximum bans the account.
func (e *Engine) ConfirmOriginVerification(ctx context.Context, account *Account, origin, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if account == nil {
		return ErrAccountNotFound
	}
	if origin == "" || code == "" {
		return ErrChallengeInvalid
	}

	opctx, cancel := e.opCtx(ctx)
	record, err := e.challenges.Get(opctx, account.ID, origin)
	cancel()
	if err != nil {
		if errors.Is(err, errChallengeNotFound) {
			return ErrChallengeNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !internal.CodeEqual(record.CodeHash, code) {
		e.metricInc(MetricVerificationFailure)
		e.emitAudit(ctx, auditEventVerificationFailure, false, account.ID, "", ErrChallengeInvalid, func() map[string]string {
			return map[string]string{"origin": origin, "challenge_id": record.ChallengeID}
		})

		if _, err := e.RecordVerificationFailure(ctx, account, actionVerifyOrigin, origin); err != nil {
			return err
		}
		return ErrChallengeInvalid
	}

	opctx, cancel = e.opCtx(ctx)
	err = e.challenges.Delete(opctx, account.ID, origin)
	cancel()
	if err != nil {
		log.Printf("trustcore: challenge cleanup failed for account %s: %v", account.ID, err)
	}

	if err := e.ResetVerificationAttempts(ctx, account, actionVerifyOrigin, origin); err != nil {
		log.Printf("trustcore: attempt counter reset failed for account %s: %v", account.ID, err)
	}

	if err := e.RecordTrustedOrigin(ctx, account, origin); err != nil {
		return err
	}

	e.metricInc(MetricOriginChallengeConfirmed)
	e.emitAudit(ctx, auditEventOriginChallengeConfirmed, true, account.ID, "", nil, func() map[string]string {
		return map[string]string{"origin": origin, "challenge_id": record.ChallengeID}
	})

	return nil
}
