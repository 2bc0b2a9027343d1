package security

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func newBufferedAuditor(enabled bool) (*Auditor, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return NewAuditor(logger, enabled), &buf
}

func TestNewAuditor(t *testing.T) {
	tests := []struct {
		name    string
		logger  *slog.Logger
		enabled bool
	}{
		{name: "enabled with logger", logger: slog.Default(), enabled: true},
		{name: "disabled with logger", logger: slog.Default(), enabled: false},
		{name: "enabled with nil logger", logger: nil, enabled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor := NewAuditor(tt.logger, tt.enabled)
			if auditor == nil {
				t.Fatal("NewAuditor() returned nil")
			}
			if auditor.enabled != tt.enabled {
				t.Errorf("enabled = %v, want %v", auditor.enabled, tt.enabled)
			}
			if auditor.logger == nil {
				t.Error("logger should not be nil")
			}
		})
	}
}

func TestAuditor_LogEvent(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		wantLog bool
	}{
		{name: "enabled", enabled: true, wantLog: true},
		{name: "disabled", enabled: false, wantLog: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor, buf := newBufferedAuditor(tt.enabled)

			auditor.LogEvent(Event{
				Type:     "test_event",
				OwnerID:  "owner-123",
				ClientID: "client-456",
				Details:  map[string]any{"key": "value"},
			})

			if got := buf.Len() > 0; got != tt.wantLog {
				t.Errorf("LogEvent() logged = %v, want %v", got, tt.wantLog)
			}
		})
	}
}

func TestAuditor_NilSafe(t *testing.T) {
	var auditor *Auditor
	auditor.LogTokenIssued("owner", "client", "read", true)
}

func TestAuditor_HashesOwner(t *testing.T) {
	auditor, buf := newBufferedAuditor(true)

	auditor.LogCodeIssued("alice@example.com", "client-456", "read")

	out := buf.String()
	if strings.Contains(out, "alice@example.com") {
		t.Error("owner id must not appear in audit output")
	}
	if !strings.Contains(out, hashForLogging("alice@example.com")) {
		t.Error("owner id hash missing from audit output")
	}
	if !strings.Contains(out, "event_type="+EventAuthorizationCodeIssued) {
		t.Errorf("event type missing from output: %s", out)
	}
}

func TestAuditor_Helpers(t *testing.T) {
	tests := []struct {
		name      string
		log       func(a *Auditor)
		wantEvent string
	}{
		{"token issued", func(a *Auditor) { a.LogTokenIssued("owner", "client", "read", true) }, EventTokenIssued},
		{"token refreshed", func(a *Auditor) { a.LogTokenRefreshed("owner", "client", "read") }, EventTokenRefreshed},
		{"auth failure", func(a *Auditor) { a.LogAuthFailure("client", "bad secret") }, EventAuthFailure},
		{"invalid redirect", func(a *Auditor) { a.LogInvalidRedirect("client", "https://evil.example") }, EventInvalidRedirect},
		{"invalid pkce", func(a *Auditor) { a.LogInvalidPKCE("owner", "client", "S256") }, EventPKCEValidationFailed},
		{"invalid grant", func(a *Auditor) { a.LogInvalidGrant("client", "unknown code") }, EventInvalidGrant},
		{"access denied", func(a *Auditor) { a.LogAccessDenied("owner", "client") }, EventAccessDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor, buf := newBufferedAuditor(true)
			tt.log(auditor)
			if !strings.Contains(buf.String(), "event_type="+tt.wantEvent) {
				t.Errorf("output = %q, want event_type=%s", buf.String(), tt.wantEvent)
			}
		})
	}
}

func TestAuditor_InvalidRedirectOmitsURI(t *testing.T) {
	auditor, buf := newBufferedAuditor(true)
	auditor.LogInvalidRedirect("client", "https://evil.example/steal")

	if strings.Contains(buf.String(), "evil.example") {
		t.Error("redirect URI must not be logged")
	}
}

func TestAuditor_Throttled(t *testing.T) {
	auditor, buf := newBufferedAuditor(true)
	rl := NewRateLimiter(RateLimiterConfig{PerSecond: 0.001, Burst: 2})
	defer rl.Stop()
	auditor.SetRateLimiter(rl)

	for i := 0; i < 5; i++ {
		auditor.LogAuthFailure("client", "bad secret")
	}
	auditor.LogAuthFailure("other-client", "bad secret")

	if n := strings.Count(buf.String(), "msg=security_audit "); n != 3 {
		t.Errorf("audit records = %d, want 3 (2 burst + 1 other client)", n)
	}
}

func Test_hashForLogging(t *testing.T) {
	if got := hashForLogging(""); got != "<empty>" {
		t.Errorf("hashForLogging(\"\") = %q, want <empty>", got)
	}

	got := hashForLogging("sensitive-data")
	if got == "sensitive-data" {
		t.Error("hashForLogging() returned unhashed sensitive data")
	}
	if len(got) != 16 {
		t.Errorf("hashForLogging() returned hash of length %d, want 16", len(got))
	}
	if got != hashForLogging("sensitive-data") {
		t.Error("hashForLogging() should be deterministic")
	}
	if got == hashForLogging("other-data") {
		t.Error("hashForLogging() should differ for different inputs")
	}
}
