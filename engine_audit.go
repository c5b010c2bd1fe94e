package trustcore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	auditEventDecisionAllowed          = "decision_allowed"
	auditEventDecisionDenied           = "decision_denied"
	auditEventRateLimitTriggered       = "rate_limit_triggered"
	auditEventTrustedOriginRecorded    = "trusted_origin_recorded"
	auditEventOriginChallengeRequested = "origin_challenge_requested"
	auditEventOriginChallengeConfirmed = "origin_challenge_confirmed"
	auditEventVerificationFailure      = "verification_failure"
	auditEventVerificationGuardTripped = "verification_guard_tripped"
	auditEventMultiAccountDetected     = "multi_account_detected"
	auditEventOriginQuarantined        = "origin_quarantined"
	auditEventAccountBanned            = "account_banned"
	auditEventAccountUnbanned          = "account_unbanned"
	auditEventBanCascadeApplied        = "ban_cascade_applied"
	auditEventSuspicionAdded           = "suspicion_added"
)

// AuditErrorCode defines a public type used by trustcore APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrRateLimited          AuditErrorCode = "rate_limited"
	auditErrOriginBlocked        AuditErrorCode = "origin_blocked"
	auditErrVerificationRequired AuditErrorCode = "verification_required"
	auditErrBanned               AuditErrorCode = "banned"
	auditErrAccountNotFound      AuditErrorCode = "account_not_found"
	auditErrChallengeNotFound    AuditErrorCode = "challenge_not_found"
	auditErrChallengeInvalid     AuditErrorCode = "challenge_invalid"
	auditErrAttemptsExceeded     AuditErrorCode = "attempts_exceeded"
	auditErrUnavailable          AuditErrorCode = "backend_unavailable"
	auditErrInternal             AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	route string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		Origin:    clientOriginFromContext(ctx),
		Route:     route,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// auditErrorCode maps internal errors onto stable audit codes. Internal
// causes (store timeout vs. store error) collapse into backend_unavailable;
// they are never exposed past the boundary.
func auditErrorCode(err error) AuditErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrOriginBlocked):
		return auditErrOriginBlocked
	case errors.Is(err, ErrVerificationRequired):
		return auditErrVerificationRequired
	case errors.Is(err, ErrBanned):
		return auditErrBanned
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrChallengeNotFound):
		return auditErrChallengeNotFound
	case errors.Is(err, ErrChallengeInvalid):
		return auditErrChallengeInvalid
	case errors.Is(err, ErrVerificationAttemptsExceeded):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrLedgerUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
