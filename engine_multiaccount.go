package trustcore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/skillforge/trustcore/ledger"
)

// CheckMultiAccount runs the two-phase multi-account gate for one request
// from (origin, account).
//
// Phase one consults the quarantine flag, falling back to the durable ledger
// when the flag is missing, and bans any account that shows up on a
// quarantined origin. Phase two records the account into the origin's
// sliding set; the moment the set holds more than one distinct account, the
// origin is quarantined, the block is written to the ledger, and every
// member account is banned.
//
// Moderators and admins bypass the gate entirely and are never recorded
// into origin sets.
func (e *Engine) CheckMultiAccount(ctx context.Context, origin string, account *Account) (Decision, error) {
	if e == nil {
		return denyDecision(ReasonNone), ErrEngineNotReady
	}
	if !e.config.MultiAccount.Enabled || origin == "" || account == nil || account.ID == "" {
		return allowDecision(), nil
	}
	if canBypassAbuseChecks(account) {
		return allowDecision(), nil
	}

	quarantined, err := e.isOriginQuarantined(ctx, origin)
	if err != nil {
		return denyDecision(ReasonOriginBlocked), err
	}

	if quarantined {
		e.metricInc(MetricOriginQuarantineHit)
		e.emitAudit(ctx, auditEventMultiAccountDetected, false, account.ID, "", ErrOriginBlocked, func() map[string]string {
			return map[string]string{"origin": origin, "phase": "quarantine"}
		})

		if err := e.Ban(ctx, account.ID, e.config.MultiAccount.BanReason, 0); err != nil {
			return denyDecision(ReasonOriginBlocked), err
		}
		return denyDecision(ReasonOriginBlocked), nil
	}

	opctx, cancel := e.opCtx(ctx)
	err = e.origins.AddAccount(opctx, origin, account.ID, e.config.MultiAccount.SetWindow)
	cancel()
	if err != nil {
		return denyDecision(ReasonOriginBlocked), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	opctx, cancel = e.opCtx(ctx)
	members, err := e.origins.Accounts(opctx, origin)
	cancel()
	if err != nil {
		return denyDecision(ReasonOriginBlocked), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if len(members) <= 1 {
		return allowDecision(), nil
	}

	e.metricInc(MetricMultiAccountDetected)
	e.emitAudit(ctx, auditEventMultiAccountDetected, false, account.ID, "", ErrOriginBlocked, func() map[string]string {
		return map[string]string{"origin": origin, "phase": "detection"}
	})

	if err := e.quarantineOrigin(ctx, origin, account.ID); err != nil {
		return denyDecision(ReasonOriginBlocked), err
	}

	if err := e.AddSuspicion(ctx, account.ID, "multiple accounts from one origin", suspicionPointsMultiAccount); err != nil {
		log.Printf("trustcore: suspicion update failed for account %s: %v", account.ID, err)
	}

	for _, memberID := range members {
		if err := e.Ban(ctx, memberID, e.config.MultiAccount.BanReason, 0); err != nil {
			// Members the store cannot load stay unbanned but the origin
			// block still holds; the next request from them re-enters the
			// quarantine path.
			log.Printf("trustcore: multi-account ban failed for account %s: %v", memberID, err)
		}
	}

	return denyDecision(ReasonOriginBlocked), nil
}

// isOriginQuarantined consults the flag first and the ledger on a flag miss.
// A ledger hit re-arms the flag so subsequent requests take the fast path.
func (e *Engine) isOriginQuarantined(ctx context.Context, origin string) (bool, error) {
	opctx, cancel := e.opCtx(ctx)
	flagged, err := e.origins.IsQuarantined(opctx, origin)
	cancel()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if flagged {
		return true, nil
	}

	if e.banLedger == nil {
		return false, nil
	}

	now := time.Now().UTC()
	opctx, cancel = e.opCtx(ctx)
	row, err := e.banLedger.FindActiveByOrigin(opctx, origin, now)
	cancel()
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	ttl := row.ExpiresAt.Sub(now)
	if ttl > e.config.MultiAccount.QuarantineTTL {
		ttl = e.config.MultiAccount.QuarantineTTL
	}

	opctx, cancel = e.opCtx(ctx)
	err = e.origins.SetQuarantine(opctx, origin, ttl)
	cancel()
	if err != nil {
		log.Printf("trustcore: quarantine flag rebuild failed for origin %s: %v", origin, err)
	}

	return true, nil
}

// quarantineOrigin writes the durable block first and the flag second, so a
// crash between the two leaves the stricter state. The flag is a cache; the
// ledger is the record.
func (e *Engine) quarantineOrigin(ctx context.Context, origin, relatedAccountID string) error {
	now := time.Now().UTC()

	if e.banLedger != nil {
		row := ledger.Row{
			Origin:           origin,
			RelatedAccountID: relatedAccountID,
			Reason:           e.config.MultiAccount.BanReason,
			BlockedAt:        now,
			ExpiresAt:        now.Add(e.config.MultiAccount.QuarantineTTL),
		}

		opctx, cancel := e.opCtx(ctx)
		err := e.banLedger.Insert(opctx, row)
		cancel()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
		}
	}

	opctx, cancel := e.opCtx(ctx)
	err := e.origins.SetQuarantine(opctx, origin, e.config.MultiAccount.QuarantineTTL)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricOriginQuarantineHit)
	e.emitAudit(ctx, auditEventOriginQuarantined, true, relatedAccountID, "", nil, func() map[string]string {
		return map[string]string{"origin": origin}
	})

	return nil
}

// LiftOriginQuarantine removes both the durable block and the fast-path flag
// for an origin. Intended for moderator tooling after a false positive.
func (e *Engine) LiftOriginQuarantine(ctx context.Context, origin string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if origin == "" {
		return nil
	}

	if e.banLedger != nil {
		opctx, cancel := e.opCtx(ctx)
		err := e.banLedger.DeleteByOrigin(opctx, origin)
		cancel()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
		}
	}

	opctx, cancel := e.opCtx(ctx)
	defer cancel()
	if err := e.origins.ClearQuarantine(opctx, origin); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
