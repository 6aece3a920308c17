package authem

import (
	"errors"
	"time"
)

// Config defines the process-wide configuration for a [Manager].
//
// Config instances are assembled before [Builder.Build] and treated as
// immutable afterwards. There is no mutable global configuration: tests can
// construct an isolated Manager with its own Config instead of mutating
// shared state.
type Config struct {
	// VerifyClientAuthToken is the global half of the two-level client-token
	// opt-in. A role's client token is only checked when this switch AND the
	// role's own option are both enabled. Default off.
	VerifyClientAuthToken bool

	Session SessionConfig
	Cookie  CookieConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the persisted session store.
type SessionConfig struct {
	// RedisPrefix namespaces session keys. Default "authem".
	RedisPrefix string
	// DefaultTTL is the session lifetime used when neither the role nor the
	// sign-in call supplies one. Renew-on-use extends expiry by the session's
	// ttl on every successful lookup. Default 30 days.
	DefaultTTL time.Duration
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig controls the client-side persistent channel (remember
// cookies) written through the host's [ClientStore].
type CookieConfig struct {
	// Domain scopes remember cookies. Empty means all subdomains of the
	// host's domain, matching the original domain-wide scope.
	Domain string
	// ClientTokenHeader is the inbound request header carrying the
	// second-factor client token. Default "client-auth-token".
	ClientTokenHeader string
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the buffered audit event dispatcher.
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

// MetricsConfig controls the in-process counter facility.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the baseline configuration: client-token
// verification globally off, 30-day sessions, audit and metrics disabled.
func DefaultConfig() Config {
	return Config{
		VerifyClientAuthToken: false,
		Session: SessionConfig{
			RedisPrefix: "authem",
			DefaultTTL:  30 * 24 * time.Hour,
		},
		Cookie: CookieConfig{
			ClientTokenHeader: "client-auth-token",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{Enabled: false},
	}
}

// Validate checks the configuration for values that would misbehave at
// runtime. It is called by [Builder.Build].
func (c *Config) Validate() error {
	if c.Session.RedisPrefix == "" {
		return errors.New("session redis prefix required")
	}
	if c.Session.DefaultTTL <= 0 {
		return errors.New("session default ttl must be positive")
	}
	if c.Cookie.ClientTokenHeader == "" {
		return errors.New("client token header required")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be positive when audit is enabled")
	}
	return nil
}

func cloneConfig(c Config) Config {
	// All fields are value types today; an explicit clone point keeps the
	// immutability contract obvious if reference fields are added later.
	return c
}
