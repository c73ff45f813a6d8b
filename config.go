package kompasauth

import (
	"errors"
	"time"
)

// Config defines the engine's tuning. Instances are configured during
// initialization and then treated as immutable.
type Config struct {
	JWT       JWTConfig
	Password  PasswordConfig
	Penalty   PenaltyConfig
	RateLimit RateLimitConfig
	TwoFactor TwoFactorConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures session and pending-2FA token signing (HS256).
type JWTConfig struct {
	Secret     []byte
	Issuer     string
	SessionTTL time.Duration
	PendingTTL time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig configures the bcrypt work factor for hashing. Zero
// selects the package default; verification always follows the stored
// hash's own cost.
type PasswordConfig struct {
	Cost int
}

/*
====================================
PENALTY CONFIG
====================================
*/

// PenaltyConfig configures progressive blocks. Schedule entries apply per
// violation level; levels past the end repeat the last entry. LevelTTL is
// the rolling horizon on the level counter, independent of block state.
type PenaltyConfig struct {
	Schedule []time.Duration
	LevelTTL time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// WindowConfig is one named fixed-window budget.
type WindowConfig struct {
	Limit  int
	Period time.Duration
}

// RateLimitConfig configures the guard windows. Login and Verify cover the
// account/verify2fa-keyed guards; IPBurst and IPSustained are the two
// tiers of the coarse per-IP ceiling on all auth routes.
type RateLimitConfig struct {
	Login       WindowConfig
	Verify      WindowConfig
	IPBurst     WindowConfig
	IPSustained WindowConfig
}

/*
====================================
TWO-FACTOR CONFIG
====================================
*/

// TwoFactorConfig configures the email challenge: code size, challenge
// TTL, and the per-address mail-send cooldown.
type TwoFactorConfig struct {
	CodeDigits   int
	CodeTTL      time.Duration
	SendCooldown time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			Issuer:     "kompasauth",
			SessionTTL: time.Hour,
			PendingTTL: 5 * time.Minute,
		},
		Penalty: PenaltyConfig{
			Schedule: []time.Duration{
				time.Minute,
				5 * time.Minute,
				15 * time.Minute,
				24 * time.Hour,
			},
			LevelTTL: 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Login:       WindowConfig{Limit: 5, Period: time.Minute},
			Verify:      WindowConfig{Limit: 5, Period: time.Minute},
			IPBurst:     WindowConfig{Limit: 30, Period: time.Minute},
			IPSustained: WindowConfig{Limit: 300, Period: 15 * time.Minute},
		},
		TwoFactor: TwoFactorConfig{
			CodeDigits:   6,
			CodeTTL:      5 * time.Minute,
			SendCooldown: 10 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// DefaultConfig returns the recommended deployment defaults: 1h sessions,
// 5m pending tokens and codes, 5-attempt login/verify windows, and the
// 1m/5m/15m/24h penalty schedule.
func DefaultConfig() Config {
	return defaultConfig()
}

// Validate checks invariants that Build depends on.
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT secret must be at least 32 bytes")
	}
	if c.JWT.SessionTTL <= 0 || c.JWT.PendingTTL <= 0 {
		return errors.New("JWT TTLs must be positive")
	}
	if len(c.Penalty.Schedule) == 0 {
		return errors.New("penalty schedule must not be empty")
	}
	prev := time.Duration(0)
	for _, d := range c.Penalty.Schedule {
		if d <= 0 {
			return errors.New("penalty schedule entries must be positive")
		}
		if d < prev {
			return errors.New("penalty schedule must be non-decreasing")
		}
		prev = d
	}
	if c.Penalty.LevelTTL <= 0 {
		return errors.New("penalty level TTL must be positive")
	}
	for _, w := range []WindowConfig{
		c.RateLimit.Login, c.RateLimit.Verify, c.RateLimit.IPBurst, c.RateLimit.IPSustained,
	} {
		if w.Limit <= 0 || w.Period <= 0 {
			return errors.New("rate limit windows must have positive limit and period")
		}
	}
	if c.TwoFactor.CodeDigits < 6 || c.TwoFactor.CodeDigits > 10 {
		return errors.New("two-factor code digits must be between 6 and 10")
	}
	if c.TwoFactor.CodeTTL <= 0 {
		return errors.New("two-factor code TTL must be positive")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	if len(cfg.Penalty.Schedule) > 0 {
		out.Penalty.Schedule = make([]time.Duration, len(cfg.Penalty.Schedule))
		copy(out.Penalty.Schedule, cfg.Penalty.Schedule)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
