package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	oauth "github.com/giantswarm/oauth-engine"
	"github.com/giantswarm/oauth-engine/instrumentation"
	"github.com/giantswarm/oauth-engine/security"
	"github.com/giantswarm/oauth-engine/storage"
)

// Endpoint binds the primitives and collaborators a flow operates on.
// Only the fields a flow needs have to be set; Prepare* reports the rest.
type Endpoint struct {
	Registrar  storage.Registrar
	Authorizer storage.Authorizer
	Issuer     storage.Issuer
	Solicitor  Solicitor

	// Addons run at code issuance and token exchange (optional)
	Addons *AddonList

	// Config defaults are applied when nil
	Config *Config

	Logger          *slog.Logger
	Auditor         *security.Auditor
	Instrumentation *instrumentation.Instrumentation

	// Now is the clock used for grant lifetimes (default: time.Now)
	Now func() time.Time
}

// ConfigurationError is returned by Prepare* when the endpoint lacks a
// binding the flow needs. It is detected before any request is handled.
type ConfigurationError struct {
	Flow    string
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s flow: endpoint is missing %s", e.Flow, strings.Join(e.Missing, ", "))
}

// requireBindings returns a ConfigurationError naming every unset binding
func requireBindings(flow string, bindings map[string]bool) error {
	var missing []string
	// Fixed order keeps the message stable.
	for _, name := range []string{"registrar", "authorizer", "issuer", "solicitor"} {
		if set, needed := bindings[name]; needed && !set {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &ConfigurationError{Flow: flow, Missing: missing}
	}
	return nil
}

// Flow names used in logs and metrics
const (
	flowAuthorization = "authorization"
	flowAccessToken   = "access_token" //nolint:gosec // flow name, not a credential
	flowRefresh       = "refresh"
	flowResource      = "resource"
)

// flowBase carries what every flow shares
type flowBase struct {
	name    string
	config  Config
	addons  *AddonList
	logger  *slog.Logger
	auditor *security.Auditor
	metrics *instrumentation.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

func newFlowBase(name string, ep *Endpoint) flowBase {
	logger := ep.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := ep.Now
	if now == nil {
		now = time.Now
	}

	var tracer trace.Tracer
	if ep.Instrumentation != nil {
		tracer = ep.Instrumentation.Tracer("server")
	} else {
		tracer = tracenoop.NewTracerProvider().Tracer("")
	}

	return flowBase{
		name:    name,
		config:  applySecureDefaults(ep.Config, logger),
		addons:  ep.Addons,
		logger:  logger.With("flow", name),
		auditor: ep.Auditor,
		metrics: ep.Instrumentation.Metrics(),
		tracer:  tracer,
		now:     now,
	}
}

// fail records a protocol error on the span and in metrics
func (b *flowBase) fail(ctx context.Context, span trace.Span, oe *oauth.OAuthError) *oauth.OAuthError {
	b.logger.Debug("Request rejected", "error", oe.Code, "description", oe.Description)
	instrumentation.AddProtocolErrorAttributes(span, oe.Code, oe.Status)
	b.metrics.RecordProtocolError(ctx, b.name, oe.Code)
	return oe
}

// expired reports whether until has passed, honouring the grace period
func (b *flowBase) expired(until time.Time) bool {
	return security.IsExpiredWithGracePeriod(until, b.now(), b.config.gracePeriod())
}
