package trustcore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/skillforge/trustcore/internal/limiters"
	"github.com/skillforge/trustcore/internal/rate"
	"github.com/skillforge/trustcore/ledger"
)

// Engine defines a public type used by trustcore APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config      Config
	redis       redis.UniversalClient
	accounts    AccountStore
	engagements EngagementStore
	banLedger   ledger.Store
	notifier    Notifier

	routes     *rate.Limiter
	attempts   *limiters.AttemptLimiter
	origins    *originStore
	challenges *challengeStore
	audit      *auditDispatcher
	metrics    *Metrics
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// opCtx bounds a single external store call with the configured timeout.
func (e *Engine) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, e.config.Store.OpTimeout)
}

// Authorize runs the full pre-request gate for one inbound request: rate
// ceilings first, then ban state, quarantined origin, multi-account
// detection, and origin trust. The account may be nil for anonymous
// traffic, in which case only origin-scoped checks apply.
//
// A denied decision comes back with a nil error; errors are reserved for
// the engine being unable to decide. Store failures fail closed: the
// request is denied rather than waved through.
func (e *Engine) Authorize(ctx context.Context, route RouteClass, account *Account) (Decision, error) {
	if e == nil {
		return denyDecision(ReasonNone), ErrEngineNotReady
	}

	start := time.Now()
	decision, err := e.authorize(ctx, route, account)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricAuthorizeLatency, time.Since(start))
	}

	accountID := ""
	if account != nil {
		accountID = account.ID
	}

	if decision.Allow {
		e.metricInc(MetricAuthorizeAllowed)
		e.emitAudit(ctx, auditEventDecisionAllowed, true, accountID, route.String(), nil, nil)
	} else {
		e.metricInc(MetricAuthorizeDenied)
		reason := decision.Reason
		e.emitAudit(ctx, auditEventDecisionDenied, false, accountID, route.String(), err, func() map[string]string {
			return map[string]string{"reason": reason.String()}
		})
	}

	return decision, err
}

func (e *Engine) authorize(ctx context.Context, route RouteClass, account *Account) (Decision, error) {
	// Ceilings are charged before any account-store or ledger touch so
	// that requests denied further down still consume their quota.
	decision, err := e.CheckRoute(ctx, route, account)
	if err != nil || !decision.Allow {
		return decision, err
	}

	now := time.Now().UTC()

	if account != nil && account.Ban.ActiveAt(now) {
		return denyDecision(ReasonBanned), nil
	}

	origin := clientOriginFromContext(ctx)

	if account != nil && origin != "" {
		decision, err := e.CheckMultiAccount(ctx, origin, account)
		if err != nil || !decision.Allow {
			return decision, err
		}
	}

	if account != nil && origin != "" {
		trusted, err := e.IsTrustedOrigin(ctx, account, origin)
		if err != nil {
			return denyDecision(ReasonVerificationRequired), err
		}
		if !trusted && !e.routeAllowsUntrusted(route) {
			e.metricInc(MetricVerificationRequired)
			return denyDecision(ReasonVerificationRequired), nil
		}
	}

	return allowDecision(), nil
}

func (e *Engine) routeAllowsUntrusted(route RouteClass) bool {
	for _, allowed := range e.config.Trust.AllowUnverifiedRoutes {
		if allowed == route {
			return true
		}
	}
	return false
}
