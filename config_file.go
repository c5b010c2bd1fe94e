package trustcore

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the tunable subset of Config for YAML deployment files.
// Durations are strings in time.ParseDuration syntax ("10m", "24h").
type fileConfig struct {
	Store struct {
		RedisPrefix string `yaml:"redis_prefix,omitempty"`
		OpTimeout   string `yaml:"op_timeout,omitempty"`
	} `yaml:"store,omitempty"`

	Trust struct {
		MaxTrustedOrigins int    `yaml:"max_trusted_origins,omitempty"`
		ChallengeTTL      string `yaml:"challenge_ttl,omitempty"`
		ChallengeDigits   int    `yaml:"challenge_digits,omitempty"`
	} `yaml:"trust,omitempty"`

	VerificationGuard struct {
		MaxAttempts int    `yaml:"max_attempts,omitempty"`
		Window      string `yaml:"window,omitempty"`
		BanDuration string `yaml:"ban_duration,omitempty"`
	} `yaml:"verification_guard,omitempty"`

	RateLimit struct {
		Auth    fileWindowLimit `yaml:"auth,omitempty"`
		Create  fileWindowLimit `yaml:"create,omitempty"`
		Message fileWindowLimit `yaml:"message,omitempty"`
		Report  fileWindowLimit `yaml:"report,omitempty"`
		Upload  fileWindowLimit `yaml:"upload,omitempty"`

		GeneralWindow string `yaml:"general_window,omitempty"`
		General       struct {
			Anonymous  int `yaml:"anonymous,omitempty"`
			Unverified int `yaml:"unverified,omitempty"`
			Verified   int `yaml:"verified,omitempty"`
			Helper     int `yaml:"helper,omitempty"`
			Moderator  int `yaml:"moderator,omitempty"`
			Admin      int `yaml:"admin,omitempty"`
		} `yaml:"general,omitempty"`
	} `yaml:"rate_limit,omitempty"`

	MultiAccount struct {
		Enabled       *bool  `yaml:"enabled,omitempty"`
		SetWindow     string `yaml:"set_window,omitempty"`
		QuarantineTTL string `yaml:"quarantine_ttl,omitempty"`
	} `yaml:"multi_account,omitempty"`

	Cascade struct {
		MinBanDurationToCascade string `yaml:"min_ban_duration_to_cascade,omitempty"`
	} `yaml:"cascade,omitempty"`

	Audit struct {
		Enabled    *bool `yaml:"enabled,omitempty"`
		BufferSize int   `yaml:"buffer_size,omitempty"`
		DropIfFull *bool `yaml:"drop_if_full,omitempty"`
	} `yaml:"audit,omitempty"`

	Metrics struct {
		Enabled                 *bool `yaml:"enabled,omitempty"`
		EnableLatencyHistograms *bool `yaml:"enable_latency_histograms,omitempty"`
	} `yaml:"metrics,omitempty"`
}

type fileWindowLimit struct {
	Max    int    `yaml:"max,omitempty"`
	Window string `yaml:"window,omitempty"`
}

// LoadConfigFile reads a YAML deployment file and applies it on top of the
// default configuration. Fields absent from the file keep their defaults;
// the merged result is validated before being returned.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig applies YAML data on top of the default configuration.
func ParseConfig(data []byte) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg := defaultConfig()

	if fc.Store.RedisPrefix != "" {
		cfg.Store.RedisPrefix = fc.Store.RedisPrefix
	}
	if err := overrideDuration(&cfg.Store.OpTimeout, fc.Store.OpTimeout, "store.op_timeout"); err != nil {
		return Config{}, err
	}

	if fc.Trust.MaxTrustedOrigins != 0 {
		cfg.Trust.MaxTrustedOrigins = fc.Trust.MaxTrustedOrigins
	}
	if err := overrideDuration(&cfg.Trust.ChallengeTTL, fc.Trust.ChallengeTTL, "trust.challenge_ttl"); err != nil {
		return Config{}, err
	}
	if fc.Trust.ChallengeDigits != 0 {
		cfg.Trust.ChallengeDigits = fc.Trust.ChallengeDigits
	}

	if fc.VerificationGuard.MaxAttempts != 0 {
		cfg.VerificationGuard.MaxAttempts = fc.VerificationGuard.MaxAttempts
	}
	if err := overrideDuration(&cfg.VerificationGuard.Window, fc.VerificationGuard.Window, "verification_guard.window"); err != nil {
		return Config{}, err
	}
	if err := overrideDuration(&cfg.VerificationGuard.BanDuration, fc.VerificationGuard.BanDuration, "verification_guard.ban_duration"); err != nil {
		return Config{}, err
	}

	for _, m := range []struct {
		name string
		src  fileWindowLimit
		dst  *WindowLimit
	}{
		{"rate_limit.auth", fc.RateLimit.Auth, &cfg.RateLimit.Auth},
		{"rate_limit.create", fc.RateLimit.Create, &cfg.RateLimit.Create},
		{"rate_limit.message", fc.RateLimit.Message, &cfg.RateLimit.Message},
		{"rate_limit.report", fc.RateLimit.Report, &cfg.RateLimit.Report},
		{"rate_limit.upload", fc.RateLimit.Upload, &cfg.RateLimit.Upload},
	} {
		if m.src.Max != 0 {
			m.dst.Max = m.src.Max
		}
		if err := overrideDuration(&m.dst.Window, m.src.Window, m.name+".window"); err != nil {
			return Config{}, err
		}
	}
	if err := overrideDuration(&cfg.RateLimit.GeneralWindow, fc.RateLimit.GeneralWindow, "rate_limit.general_window"); err != nil {
		return Config{}, err
	}
	g := fc.RateLimit.General
	for _, m := range []struct {
		src int
		dst *int
	}{
		{g.Anonymous, &cfg.RateLimit.General.Anonymous},
		{g.Unverified, &cfg.RateLimit.General.Unverified},
		{g.Verified, &cfg.RateLimit.General.Verified},
		{g.Helper, &cfg.RateLimit.General.Helper},
		{g.Moderator, &cfg.RateLimit.General.Moderator},
		{g.Admin, &cfg.RateLimit.General.Admin},
	} {
		if m.src != 0 {
			*m.dst = m.src
		}
	}

	if fc.MultiAccount.Enabled != nil {
		cfg.MultiAccount.Enabled = *fc.MultiAccount.Enabled
	}
	if err := overrideDuration(&cfg.MultiAccount.SetWindow, fc.MultiAccount.SetWindow, "multi_account.set_window"); err != nil {
		return Config{}, err
	}
	if err := overrideDuration(&cfg.MultiAccount.QuarantineTTL, fc.MultiAccount.QuarantineTTL, "multi_account.quarantine_ttl"); err != nil {
		return Config{}, err
	}

	if err := overrideDuration(&cfg.Cascade.MinBanDurationToCascade, fc.Cascade.MinBanDurationToCascade, "cascade.min_ban_duration_to_cascade"); err != nil {
		return Config{}, err
	}

	if fc.Audit.Enabled != nil {
		cfg.Audit.Enabled = *fc.Audit.Enabled
	}
	if fc.Audit.BufferSize != 0 {
		cfg.Audit.BufferSize = fc.Audit.BufferSize
	}
	if fc.Audit.DropIfFull != nil {
		cfg.Audit.DropIfFull = *fc.Audit.DropIfFull
	}

	if fc.Metrics.Enabled != nil {
		cfg.Metrics.Enabled = *fc.Metrics.Enabled
	}
	if fc.Metrics.EnableLatencyHistograms != nil {
		cfg.Metrics.EnableLatencyHistograms = *fc.Metrics.EnableLatencyHistograms
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overrideDuration(dst *time.Duration, raw, field string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", field, err)
	}
	*dst = d
	return nil
}
