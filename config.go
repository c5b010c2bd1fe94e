package trustcore

import (
	"errors"
	"time"
)

// Config defines a public type used by trustcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Store             StoreConfig
	Trust             TrustConfig
	VerificationGuard VerificationGuardConfig
	RateLimit         RateLimitConfig
	MultiAccount      MultiAccountConfig
	Cascade           CascadeConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig defines a public type used by trustcore APIs.
//
// StoreConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StoreConfig struct {
	RedisPrefix string
	// OpTimeout bounds every external store call. On timeout, gating checks
	// deny; committed writes are never undone by a later timeout.
	OpTimeout time.Duration
}

/*
====================================
TRUST CONFIG
====================================
*/

// TrustConfig defines a public type used by trustcore APIs.
//
// TrustConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TrustConfig struct {
	// MaxTrustedOrigins bounds the per-account trusted origin list.
	// Inserting beyond the bound evicts the oldest-LastUsedAt entry.
	MaxTrustedOrigins int
	ChallengeTTL      time.Duration
	ChallengeDigits   int
	// AllowUnverifiedRoutes are route classes an authenticated caller may hit
	// from an untrusted origin. Without this list a user locked out of their
	// trusted origins could never verify a new one.
	AllowUnverifiedRoutes []RouteClass
}

/*
====================================
VERIFICATION GUARD CONFIG
====================================
*/

// VerificationGuardConfig defines a public type used by trustcore APIs.
//
// VerificationGuardConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type VerificationGuardConfig struct {
	MaxAttempts int
	Window      time.Duration
	BanDuration time.Duration
	BanReason   string
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// WindowLimit is one fixed-window ceiling.
type WindowLimit struct {
	Max    int
	Window time.Duration
}

// RoleCeilings holds the general-purpose limiter's per-role ceilings, in
// escalating order of privilege. This is the one ceiling that is a function
// of the caller rather than a constant.
type RoleCeilings struct {
	Anonymous  int
	Unverified int
	Verified   int
	Helper     int
	Moderator  int
	Admin      int
}

// RateLimitConfig defines a public type used by trustcore APIs.
//
// RateLimitConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RateLimitConfig struct {
	Auth    WindowLimit
	Create  WindowLimit
	Message WindowLimit
	Report  WindowLimit
	Upload  WindowLimit

	GeneralWindow time.Duration
	General       RoleCeilings
}

/*
====================================
MULTI-ACCOUNT CONFIG
====================================
*/

// MultiAccountConfig defines a public type used by trustcore APIs.
//
// MultiAccountConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MultiAccountConfig struct {
	Enabled bool
	// SetWindow is the sliding observation window for the per-origin account
	// set. Refreshed on every insert.
	SetWindow     time.Duration
	QuarantineTTL time.Duration
	BanReason     string
}

/*
====================================
CASCADE CONFIG
====================================
*/

// CascadeConfig defines a public type used by trustcore APIs.
//
// CascadeConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CascadeConfig struct {
	// MinBanDurationToCascade: bans longer than this (or permanent) cascade
	// into in-flight engagements. Short administrative suspensions do not,
	// so counterparties are not punished for likely-accidental bans.
	MinBanDurationToCascade time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by trustcore APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by trustcore APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Store: StoreConfig{
			RedisPrefix: "tc",
			OpTimeout:   2 * time.Second,
		},
		Trust: TrustConfig{
			MaxTrustedOrigins:     3,
			ChallengeTTL:          10 * time.Minute,
			ChallengeDigits:       6,
			AllowUnverifiedRoutes: []RouteClass{RouteVerifyOrigin},
		},
		VerificationGuard: VerificationGuardConfig{
			MaxAttempts: 3,
			Window:      10 * time.Minute,
			BanDuration: 7 * 24 * time.Hour,
			BanReason:   "suspected compromise",
		},
		RateLimit: RateLimitConfig{
			Auth:    WindowLimit{Max: 10, Window: 10 * time.Minute},
			Create:  WindowLimit{Max: 20, Window: 24 * time.Hour},
			Message: WindowLimit{Max: 30, Window: time.Minute},
			Report:  WindowLimit{Max: 5, Window: time.Hour},
			Upload:  WindowLimit{Max: 15, Window: 24 * time.Hour},

			GeneralWindow: time.Minute,
			General: RoleCeilings{
				Anonymous:  30,
				Unverified: 60,
				Verified:   120,
				Helper:     180,
				Moderator:  300,
				Admin:      600,
			},
		},
		MultiAccount: MultiAccountConfig{
			Enabled:       true,
			SetWindow:     15 * time.Minute,
			QuarantineTTL: 24 * time.Hour,
			BanReason:     "suspected multi-account",
		},
		Cascade: CascadeConfig{
			MinBanDurationToCascade: 48 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Trust.AllowUnverifiedRoutes != nil {
		out.Trust.AllowUnverifiedRoutes = append([]RouteClass(nil), cfg.Trust.AllowUnverifiedRoutes...)
	}
	return out
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Store
	if c.Store.RedisPrefix == "" {
		return errors.New("Store RedisPrefix is required")
	}
	if c.Store.OpTimeout <= 0 {
		return errors.New("Store OpTimeout must be > 0")
	}

	// Trust
	if c.Trust.MaxTrustedOrigins <= 0 {
		return errors.New("Trust MaxTrustedOrigins must be > 0")
	}
	if c.Trust.ChallengeTTL <= 0 {
		return errors.New("Trust ChallengeTTL must be > 0")
	}
	if c.Trust.ChallengeDigits < 6 || c.Trust.ChallengeDigits > 10 {
		return errors.New("Trust ChallengeDigits must be between 6 and 10")
	}

	// Verification guard
	if c.VerificationGuard.MaxAttempts <= 0 {
		return errors.New("VerificationGuard MaxAttempts must be > 0")
	}
	if c.VerificationGuard.Window <= 0 {
		return errors.New("VerificationGuard Window must be > 0")
	}
	if c.VerificationGuard.BanDuration <= 0 {
		return errors.New("VerificationGuard BanDuration must be > 0")
	}
	if c.VerificationGuard.BanReason == "" {
		return errors.New("VerificationGuard BanReason is required")
	}

	// Rate limits
	for _, wl := range []struct {
		name  string
		limit WindowLimit
	}{
		{"Auth", c.RateLimit.Auth},
		{"Create", c.RateLimit.Create},
		{"Message", c.RateLimit.Message},
		{"Report", c.RateLimit.Report},
		{"Upload", c.RateLimit.Upload},
	} {
		if wl.limit.Max <= 0 {
			return errors.New("RateLimit " + wl.name + " Max must be > 0")
		}
		if wl.limit.Window <= 0 {
			return errors.New("RateLimit " + wl.name + " Window must be > 0")
		}
	}
	if c.RateLimit.GeneralWindow <= 0 {
		return errors.New("RateLimit GeneralWindow must be > 0")
	}
	g := c.RateLimit.General
	if g.Anonymous <= 0 {
		return errors.New("RateLimit General Anonymous ceiling must be > 0")
	}
	if g.Anonymous > g.Unverified || g.Unverified > g.Verified ||
		g.Verified > g.Helper || g.Helper > g.Moderator || g.Moderator > g.Admin {
		return errors.New("RateLimit General ceilings must escalate with role")
	}

	// Multi-account
	if c.MultiAccount.Enabled {
		if c.MultiAccount.SetWindow <= 0 {
			return errors.New("MultiAccount SetWindow must be > 0")
		}
		if c.MultiAccount.QuarantineTTL <= 0 {
			return errors.New("MultiAccount QuarantineTTL must be > 0")
		}
		if c.MultiAccount.BanReason == "" {
			return errors.New("MultiAccount BanReason is required")
		}
	}

	// Cascade
	if c.Cascade.MinBanDurationToCascade <= 0 {
		return errors.New("Cascade MinBanDurationToCascade must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
