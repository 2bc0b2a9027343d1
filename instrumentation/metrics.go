package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the engine.
// All Record methods are nil-safe so callers need no instrumentation guard.
type Metrics struct {
	// Flow metrics
	AuthorizationRequests metric.Int64Counter
	CodeIssued            metric.Int64Counter
	CodeExchanged         metric.Int64Counter
	TokenRefreshed        metric.Int64Counter
	ResourceValidated     metric.Int64Counter
	ProtocolErrors        metric.Int64Counter

	// Security metrics
	PKCEValidationFailed metric.Int64Counter
	AuditEventsTotal     metric.Int64Counter

	// Actor bridge metrics
	ActorMessages        metric.Int64Counter
	ActorMessageDuration metric.Float64Histogram

	// Storage gauges, observed through RegisterStorageSizeCallbacks
	StorageCodesCount   metric.Int64ObservableGauge
	StorageTokensCount  metric.Int64ObservableGauge
	StorageClientsCount metric.Int64ObservableGauge
}

// newMetrics creates all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}
	var err error

	serverMeter := inst.Meter("server")
	securityMeter := inst.Meter("security")
	actorMeter := inst.Meter("actor")
	storageMeter := inst.Meter("storage")

	counters := []struct {
		dst   *metric.Int64Counter
		meter metric.Meter
		name  string
		desc  string
		unit  string
	}{
		{&m.AuthorizationRequests, serverMeter, "oauth.authorization.requests", "Authorization requests processed", "{request}"},
		{&m.CodeIssued, serverMeter, "oauth.code.issued", "Authorization codes issued", "{code}"},
		{&m.CodeExchanged, serverMeter, "oauth.code.exchanged", "Authorization codes exchanged for tokens", "{exchange}"},
		{&m.TokenRefreshed, serverMeter, "oauth.token.refreshed", "Tokens refreshed", "{refresh}"},
		{&m.ResourceValidated, serverMeter, "oauth.resource.validated", "Bearer tokens validated", "{validation}"},
		{&m.ProtocolErrors, serverMeter, "oauth.protocol.errors", "Protocol errors returned to clients", "{error}"},
		{&m.PKCEValidationFailed, securityMeter, "oauth.pkce.validation_failed", "PKCE verification failures", "{failure}"},
		{&m.AuditEventsTotal, securityMeter, "oauth.audit.events", "Audit events emitted", "{event}"},
		{&m.ActorMessages, actorMeter, "oauth.actor.messages", "Messages processed by actor mailboxes", "{message}"},
	}
	for _, c := range counters {
		*c.dst, err = c.meter.Int64Counter(
			c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
	}

	m.ActorMessageDuration, err = actorMeter.Float64Histogram(
		"oauth.actor.message.duration",
		metric.WithDescription("Actor message round-trip duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create actor duration histogram: %w", err)
	}

	m.StorageCodesCount, err = storageMeter.Int64ObservableGauge(
		"oauth.storage.codes",
		metric.WithDescription("Pending authorization codes"),
		metric.WithUnit("{code}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create codes gauge: %w", err)
	}

	m.StorageTokensCount, err = storageMeter.Int64ObservableGauge(
		"oauth.storage.tokens",
		metric.WithDescription("Live access tokens"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokens gauge: %w", err)
	}

	m.StorageClientsCount, err = storageMeter.Int64ObservableGauge(
		"oauth.storage.clients",
		metric.WithDescription("Registered clients"),
		metric.WithUnit("{client}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create clients gauge: %w", err)
	}

	return m, nil
}

// Helper methods for common metric recording patterns

// RecordAuthorizationRequest records a processed authorization request.
// result is "code", "denied" or an OAuth error code.
func (m *Metrics) RecordAuthorizationRequest(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.AuthorizationRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
	))
}

// RecordCodeIssued records an authorization code issuance
func (m *Metrics) RecordCodeIssued(ctx context.Context, clientID string) {
	if m == nil {
		return
	}
	m.CodeIssued.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
	))
}

// RecordCodeExchange records an authorization code exchange.
// pkceMethod is empty when the grant carried no challenge.
func (m *Metrics) RecordCodeExchange(ctx context.Context, clientID, pkceMethod string) {
	if m == nil {
		return
	}
	if pkceMethod == "" {
		pkceMethod = "none"
	}
	m.CodeExchanged.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
		attribute.String("pkce_method", pkceMethod),
	))
}

// RecordTokenRefresh records a token refresh operation
func (m *Metrics) RecordTokenRefresh(ctx context.Context, clientID string) {
	if m == nil {
		return
	}
	m.TokenRefreshed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
	))
}

// RecordResourceValidated records a bearer token check
func (m *Metrics) RecordResourceValidated(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.ResourceValidated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
	))
}

// RecordProtocolError records an OAuth error response
func (m *Metrics) RecordProtocolError(ctx context.Context, flow, code string) {
	if m == nil {
		return
	}
	m.ProtocolErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flow", flow),
		attribute.String("error", code),
	))
}

// RecordPKCEValidationFailed records a PKCE validation failure
func (m *Metrics) RecordPKCEValidationFailed(ctx context.Context, method string) {
	if m == nil {
		return
	}
	m.PKCEValidationFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
	))
}

// RecordAuditEvent records an audit event
func (m *Metrics) RecordAuditEvent(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.AuditEventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
	))
}

// RecordActorMessage records one mailbox round trip.
// outcome is "ok", "error", "closed", "canceled" or "panic".
func (m *Metrics) RecordActorMessage(ctx context.Context, actor, message, outcome string, durationMs float64) {
	if m == nil {
		return
	}
	m.ActorMessages.Add(ctx, 1, metric.WithAttributes(
		attribute.String("actor", actor),
		attribute.String("message", message),
		attribute.String("outcome", outcome),
	))
	m.ActorMessageDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("actor", actor),
		attribute.String("message", message),
	))
}
