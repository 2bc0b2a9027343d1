package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/giantswarm/oauth-engine/instrumentation"
)

// Auditor handles security event logging with PII protection.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
	limiter *RateLimiter
	metrics *instrumentation.Metrics
	now     func() time.Time
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
		now:     time.Now,
	}
}

// SetRateLimiter throttles audit output per event type and client.
// Events above the limit are dropped and counted at debug level.
func (a *Auditor) SetRateLimiter(rl *RateLimiter) {
	a.limiter = rl
}

// SetInstrumentation enables the oauth.audit.events counter
func (a *Auditor) SetInstrumentation(inst *instrumentation.Instrumentation) {
	a.metrics = inst.Metrics()
}

// Event represents a security audit event
type Event struct {
	Type      string
	OwnerID   string
	ClientID  string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with hashed PII (nil-safe)
func (a *Auditor) LogEvent(event Event) {
	if a == nil || !a.enabled {
		return
	}

	if a.limiter != nil && !a.limiter.Allow(event.Type+"|"+event.ClientID) {
		a.logger.Debug("security_audit throttled",
			"event_type", event.Type,
			"client_id", event.ClientID)
		return
	}

	event.Timestamp = a.now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"owner_id_hash", hashForLogging(event.OwnerID),
		"client_id", event.ClientID,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)

	a.metrics.RecordAuditEvent(context.Background(), event.Type)
}

// LogCodeIssued logs when an authorization code is issued
func (a *Auditor) LogCodeIssued(ownerID, clientID, scope string) {
	a.LogEvent(Event{
		Type:     EventAuthorizationCodeIssued,
		OwnerID:  ownerID,
		ClientID: clientID,
		Details: map[string]any{
			"scope": scope,
		},
	})
}

// LogTokenIssued logs when a token is issued
func (a *Auditor) LogTokenIssued(ownerID, clientID, scope string, refreshable bool) {
	a.LogEvent(Event{
		Type:     EventTokenIssued,
		OwnerID:  ownerID,
		ClientID: clientID,
		Details: map[string]any{
			"scope":       scope,
			"refreshable": refreshable,
		},
	})
}

// LogTokenRefreshed logs when a token is refreshed
func (a *Auditor) LogTokenRefreshed(ownerID, clientID, scope string) {
	a.LogEvent(Event{
		Type:     EventTokenRefreshed,
		OwnerID:  ownerID,
		ClientID: clientID,
		Details: map[string]any{
			"scope": scope,
		},
	})
}

// LogAuthFailure logs a client authentication failure
func (a *Auditor) LogAuthFailure(clientID, reason string) {
	a.LogEvent(Event{
		Type:     EventAuthFailure,
		ClientID: clientID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogInvalidRedirect logs a redirect_uri that did not match the registration.
// Only the URI length is recorded.
func (a *Auditor) LogInvalidRedirect(clientID, redirectURI string) {
	a.LogEvent(Event{
		Type:     EventInvalidRedirect,
		ClientID: clientID,
		Details: map[string]any{
			"redirect_uri_length": len(redirectURI),
		},
	})
}

// LogInvalidPKCE logs a failed code_verifier check
func (a *Auditor) LogInvalidPKCE(ownerID, clientID, method string) {
	a.LogEvent(Event{
		Type:     EventPKCEValidationFailed,
		OwnerID:  ownerID,
		ClientID: clientID,
		Details: map[string]any{
			"method": method,
		},
	})
}

// LogInvalidGrant logs an unknown, expired, already used or mismatched code
func (a *Auditor) LogInvalidGrant(clientID, reason string) {
	a.LogEvent(Event{
		Type:     EventInvalidGrant,
		ClientID: clientID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogAccessDenied logs a resource owner denying consent
func (a *Auditor) LogAccessDenied(ownerID, clientID string) {
	a.LogEvent(Event{
		Type:     EventAccessDenied,
		OwnerID:  ownerID,
		ClientID: clientID,
	})
}

// hashForLogging creates a SHA256 hash of sensitive data for logging
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
