package server

import (
	"log/slog"
	"time"
)

const (
	// DefaultAuthorizationCodeTTL is the default code lifetime in seconds (10 minutes)
	DefaultAuthorizationCodeTTL = 600

	// DefaultRealm is the default realm announced in WWW-Authenticate
	DefaultRealm = "oauth"

	// DefaultClockSkewGracePeriod is the default expiry grace period in seconds
	DefaultClockSkewGracePeriod = 5
)

// Config holds flow configuration
type Config struct {
	// AuthorizationCodeTTL is how long authorization codes are valid
	AuthorizationCodeTTL int64 // seconds, default: 600 (10 minutes)

	// Realm is announced in WWW-Authenticate challenges
	Realm string // default: "oauth"

	// AllowCredentialsInBody accepts client_id/client_secret as body parameters
	// on the token endpoint in addition to HTTP Basic authentication.
	// RFC 6749 Section 2.3.1 discourages this.
	// Default: false
	AllowCredentialsInBody bool // default: false

	// ClockSkewGracePeriod is the grace period for grant expiration checks (in seconds)
	// The check runs on what the Authorizer returns, so a store that drops
	// codes sooner wins. memory.AuthMap takes the same value through
	// SetClockSkewGracePeriod.
	// Default: 5 seconds
	ClockSkewGracePeriod int64 // seconds, default: 5

	// DisableClockSkewGrace forces strict expiry checks (ClockSkewGracePeriod is ignored)
	DisableClockSkewGrace bool
}

// applySecureDefaults returns a copy of config with defaults applied.
// A nil config yields the defaults.
func applySecureDefaults(config *Config, logger *slog.Logger) Config {
	var c Config
	if config != nil {
		c = *config
	}

	if c.AuthorizationCodeTTL <= 0 {
		c.AuthorizationCodeTTL = DefaultAuthorizationCodeTTL
	}
	if c.Realm == "" {
		c.Realm = DefaultRealm
	}
	if c.ClockSkewGracePeriod <= 0 {
		c.ClockSkewGracePeriod = DefaultClockSkewGracePeriod
	}
	if c.DisableClockSkewGrace {
		c.ClockSkewGracePeriod = 0
	}

	logSecurityWarnings(c, logger)

	return c
}

// logSecurityWarnings logs warnings for insecure configuration settings
func logSecurityWarnings(c Config, logger *slog.Logger) {
	if c.AllowCredentialsInBody {
		logger.Warn("SECURITY NOTICE: client credentials accepted in request body",
			"risk", "Secrets may end up in access logs",
			"recommendation", "Use HTTP Basic authentication and set AllowCredentialsInBody=false",
			"learn_more", "https://datatracker.ietf.org/doc/html/rfc6749#section-2.3.1")
	}
	if c.AuthorizationCodeTTL > DefaultAuthorizationCodeTTL {
		logger.Warn("SECURITY NOTICE: authorization code lifetime exceeds 10 minutes",
			"ttl_seconds", c.AuthorizationCodeTTL,
			"learn_more", "https://datatracker.ietf.org/doc/html/rfc6749#section-4.1.2")
	}
}

func (c Config) codeTTL() time.Duration {
	return time.Duration(c.AuthorizationCodeTTL) * time.Second
}

func (c Config) gracePeriod() time.Duration {
	return time.Duration(c.ClockSkewGracePeriod) * time.Second
}
