package trustcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/skillforge/trustcore/internal/rate"
)

// CheckRoute records one hit for the request against its route-class ceiling
// and returns the resulting decision. Authentication traffic is keyed by
// origin alone so the ceiling holds before any account exists; every other
// class is keyed by account id, falling back to origin for anonymous
// callers.
//
// Store failures fail closed: the request is denied and the error reports
// why the engine could not decide.
func (e *Engine) CheckRoute(ctx context.Context, route RouteClass, account *Account) (Decision, error) {
	if e == nil {
		return denyDecision(ReasonNone), ErrEngineNotReady
	}

	key, ok := e.routeKey(ctx, route, account)
	if !ok {
		// No identity to count against. Anonymous traffic without an origin
		// cannot be throttled here; the transport layer owns that case.
		return allowDecision(), nil
	}

	limit := e.routeLimit(route, account)

	opctx, cancel := e.opCtx(ctx)
	err := e.routes.Allow(opctx, key, limit.Window, limit.Max)
	cancel()
	if err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricRateLimitHit)
			accountID := ""
			if account != nil {
				accountID = account.ID
			}
			e.emitAudit(ctx, auditEventRateLimitTriggered, false, accountID, route.String(), ErrRateLimited, nil)
			return denyDecision(ReasonRateLimited), nil
		}
		return denyDecision(ReasonRateLimited), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return allowDecision(), nil
}

func (e *Engine) routeKey(ctx context.Context, route RouteClass, account *Account) (string, bool) {
	origin := clientOriginFromContext(ctx)

	if route == RouteAuth {
		if origin == "" {
			return "", false
		}
		return route.String() + ":" + origin, true
	}

	if account != nil && account.ID != "" {
		return route.String() + ":a:" + account.ID, true
	}
	if origin != "" {
		return route.String() + ":o:" + origin, true
	}
	return "", false
}

func (e *Engine) routeLimit(route RouteClass, account *Account) WindowLimit {
	rl := e.config.RateLimit

	switch route {
	case RouteAuth:
		return rl.Auth
	case RouteCreate:
		return rl.Create
	case RouteMessage:
		return rl.Message
	case RouteReport:
		return rl.Report
	case RouteUpload:
		return rl.Upload
	default:
		return WindowLimit{
			Max:    e.generalCeiling(account),
			Window: rl.GeneralWindow,
		}
	}
}

// generalCeiling resolves the role-dependent ceiling for the general route
// class. The most privileged role an account holds wins.
func (e *Engine) generalCeiling(account *Account) int {
	g := e.config.RateLimit.General

	switch {
	case account == nil:
		return g.Anonymous
	case account.Admin:
		return g.Admin
	case account.Moderator:
		return g.Moderator
	case account.Helper:
		return g.Helper
	case account.Verified:
		return g.Verified
	default:
		return g.Unverified
	}
}
