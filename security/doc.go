// Package security provides audit logging, audit throttling and expiry helpers
// shared by the flows.
//
// # Audit Logging
//
// The Auditor writes one "security_audit" record per event through log/slog.
// Resource owner identifiers are hashed before they are logged. Codes,
// tokens and secrets are never passed to the Auditor.
//
//	auditor := security.NewAuditor(logger, true)
//	auditor.SetRateLimiter(security.NewRateLimiter(security.RateLimiterConfig{
//	    PerSecond: 1,
//	    Burst:     10,
//	}))
//
// # Rate Limiting
//
// RateLimiter is a per-key token bucket (golang.org/x/time/rate) with LRU
// eviction bounded by MaxEntries and a background sweep of idle keys.
// Call Stop to end the sweep.
//
// # Expiry
//
// IsExpired applies DefaultClockSkewGracePeriod to an expiry instant. All
// helpers take the current time explicitly so callers can inject a clock.
package security
