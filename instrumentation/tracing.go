package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names for the flows
const (
	SpanAuthorization = "oauth.authorization"
	SpanAccessToken   = "oauth.access_token" //nolint:gosec // span name, not a credential
	SpanRefresh       = "oauth.refresh"
	SpanResource      = "oauth.resource"
)

// Common span attribute keys
//
// SECURITY WARNING: Never record actual authorization codes, access tokens,
// refresh tokens or client secrets in traces or metrics. Only record metadata
// such as token types, expiry and validation results.
const (
	AttrClientID     = "oauth.client_id"     // Client identifier (non-secret)
	AttrOwnerID      = "oauth.owner_id"      // Resource owner identifier (non-secret)
	AttrScope        = "oauth.scope"         // Granted or requested scope
	AttrPKCEMethod   = "oauth.pkce.method"   // PKCE method used (S256, plain)
	AttrGrantType    = "oauth.grant_type"    // OAuth grant type
	AttrResponseType = "oauth.response_type" // OAuth response type
	AttrClientType   = "oauth.client_type"   // Client type (public/confidential)
	AttrTokenType    = "oauth.token_type"    //nolint:gosec // Token type (Bearer) - NOT the actual token
	AttrExpiresIn    = "oauth.expires_in"    // Token lifetime in seconds
	AttrRefreshable  = "oauth.refreshable"   // Whether a refresh token was issued
	AttrError        = "oauth.error"         // Error code
	AttrStatus       = "oauth.status"        // Response status

	// Actor attributes
	AttrActorName    = "actor.name"
	AttrActorMessage = "actor.message"

	// Security attributes
	AttrAuditEventType = "security.audit.event_type"
)

// RecordError records an error on a span with proper status codes (nil-safe)
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe)
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanError sets an error status on a span (nil-safe)
func SetSpanError(span trace.Span, message string) {
	if span != nil {
		span.SetStatus(codes.Error, message)
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe)
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}

// AddOAuthFlowAttributes adds common OAuth flow attributes to a span (nil-safe)
func AddOAuthFlowAttributes(span trace.Span, clientID, ownerID, scope string) {
	if clientID != "" {
		SetSpanAttributes(span, attribute.String(AttrClientID, clientID))
	}
	if ownerID != "" {
		SetSpanAttributes(span, attribute.String(AttrOwnerID, ownerID))
	}
	if scope != "" {
		SetSpanAttributes(span, attribute.String(AttrScope, scope))
	}
}

// AddPKCEAttributes adds PKCE-related attributes to a span (nil-safe)
func AddPKCEAttributes(span trace.Span, method string) {
	if method != "" {
		SetSpanAttributes(span, attribute.String(AttrPKCEMethod, method))
	}
}

// AddTokenAttributes adds issued token metadata to a span (nil-safe)
func AddTokenAttributes(span trace.Span, tokenType string, expiresIn int64, refreshable bool) {
	SetSpanAttributes(span,
		attribute.String(AttrTokenType, tokenType),
		attribute.Int64(AttrExpiresIn, expiresIn),
		attribute.Bool(AttrRefreshable, refreshable),
	)
}

// AddProtocolErrorAttributes records the OAuth error code and status on a span (nil-safe)
func AddProtocolErrorAttributes(span trace.Span, code string, status int) {
	SetSpanAttributes(span,
		attribute.String(AttrError, code),
		attribute.Int(AttrStatus, status),
	)
	SetSpanError(span, code)
}
