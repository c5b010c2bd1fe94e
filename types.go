package trustcore

import (
	"context"
	"time"
)

// ReasonCode classifies why a request was denied. Callers map codes to their
// own user-facing responses; trustcore never exposes internal causes (store
// timeout vs. store error) past this boundary.
type ReasonCode uint8

const (
	// ReasonNone is set on allowing decisions.
	ReasonNone ReasonCode = iota
	// ReasonRateLimited denies a request that exceeded its route ceiling.
	ReasonRateLimited
	// ReasonOriginBlocked denies a request from a quarantined origin.
	ReasonOriginBlocked
	// ReasonVerificationRequired denies a request from an origin the account
	// has not yet verified. Distinct from a generic denial so callers can
	// start the verification flow instead of showing an error.
	ReasonVerificationRequired
	// ReasonBanned denies a request from a banned account.
	ReasonBanned
)

// String returns the wire name of the reason code.
func (r ReasonCode) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonRateLimited:
		return "rate_limited"
	case ReasonOriginBlocked:
		return "origin_blocked"
	case ReasonVerificationRequired:
		return "verification_required"
	case ReasonBanned:
		return "banned"
	default:
		return "unknown"
	}
}

// Decision is the outcome of every check the engine exposes.
type Decision struct {
	Allow  bool
	Reason ReasonCode
}

func allowDecision() Decision {
	return Decision{Allow: true}
}

func denyDecision(reason ReasonCode) Decision {
	return Decision{Allow: false, Reason: reason}
}

// RouteClass identifies a request family for rate limiting purposes.
type RouteClass uint8

const (
	// RouteGeneral is the catch-all class; its ceiling depends on the
	// caller's role.
	RouteGeneral RouteClass = iota
	// RouteAuth covers authentication attempts, keyed by origin only.
	RouteAuth
	// RouteCreate covers resource creation (new requests/listings).
	RouteCreate
	// RouteMessage covers chat message sends.
	RouteMessage
	// RouteReport covers report filing.
	RouteReport
	// RouteUpload covers file uploads.
	RouteUpload
	// RouteVerifyOrigin covers the origin verification endpoints. It is on
	// the default trust allow-list so an untrusted origin can still verify
	// itself.
	RouteVerifyOrigin

	routeClassCount
)

// String returns the stable key fragment for the route class.
func (r RouteClass) String() string {
	switch r {
	case RouteGeneral:
		return "general"
	case RouteAuth:
		return "auth"
	case RouteCreate:
		return "create"
	case RouteMessage:
		return "message"
	case RouteReport:
		return "report"
	case RouteUpload:
		return "upload"
	case RouteVerifyOrigin:
		return "verify_origin"
	default:
		return "unknown"
	}
}

// TrustedOrigin is one entry in an account's bounded trusted-origin list.
type TrustedOrigin struct {
	Origin       string
	AddedAt      time.Time
	LastUsedAt   time.Time
	AgentHint    string
	LocationHint string
}

// BanState is the account's current ban, if any. A zero ExpiresAt on an
// active ban means permanent.
type BanState struct {
	Banned    bool
	Reason    string
	BannedAt  time.Time
	ExpiresAt time.Time
}

// ActiveAt reports whether the ban is in force at the given instant.
// Expired bans are treated as absent even before the account record is
// cleaned up.
func (b BanState) ActiveAt(now time.Time) bool {
	if !b.Banned {
		return false
	}
	if b.ExpiresAt.IsZero() {
		return true
	}
	return b.ExpiresAt.After(now)
}

// SuspicionEntry is one line of the account's accumulated risk log.
type SuspicionEntry struct {
	Reason    string
	Points    int
	Timestamp time.Time
}

// Account is the slice of the marketplace account record this subsystem
// reads and mutates. The owning backend maps it from its own user entity.
type Account struct {
	ID string

	// RegistrationOrigin is recorded at signup and implicitly trusted.
	// It never appears in TrustedOrigins.
	RegistrationOrigin string
	TrustedOrigins     []TrustedOrigin

	Ban BanState

	SuspicionScore int
	SuspicionLog   []SuspicionEntry

	Verified  bool
	Student   bool
	Helper    bool
	Moderator bool
	Admin     bool
}

// canBypassAbuseChecks is the single capability predicate consumed by the
// multi-account engine. Admins are additionally immune to bans applied by
// this subsystem. Origin trust is not covered: moderators and admins verify
// new origins like everyone else.
func canBypassAbuseChecks(account *Account) bool {
	if account == nil {
		return false
	}
	return account.Moderator || account.Admin
}

// AccountStore is implemented by the embedding backend to read and persist
// account records. SaveAccount must persist the trust list, ban state, and
// suspicion fields.
type AccountStore interface {
	GetAccountByID(ctx context.Context, id string) (*Account, error)
	SaveAccount(ctx context.Context, account *Account) error
}

// Engagement is a unit of in-flight marketplace work affected by a ban
// cascade. Only the fields the cascade needs to notify counterparts.
type Engagement struct {
	ID       string
	AuthorID string
	HelperID string
}

// EngagementStore is implemented by the embedding backend. Both operations
// are bulk updates keyed by account and must be idempotent: re-running them
// for an already-cascaded account affects zero rows and returns an empty
// slice.
type EngagementStore interface {
	// ReopenAssignedTo resets every in-progress engagement assigned to the
	// helper back to its open, unassigned state and returns the affected
	// engagements.
	ReopenAssignedTo(ctx context.Context, helperID, reason string) ([]Engagement, error)
	// CancelAuthoredBy cancels every open or in-progress engagement authored
	// by the account and returns the affected engagements.
	CancelAuthoredBy(ctx context.Context, authorID, reason string) ([]Engagement, error)
}

// Notifier delivers out-of-band messages to account holders. Calls are
// fire-and-forget: errors are logged by the engine and never affect the
// triggering operation's outcome.
type Notifier interface {
	Notify(ctx context.Context, accountID, message string) error
}
