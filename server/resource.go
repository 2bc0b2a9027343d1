package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/trace"

	oauth "github.com/giantswarm/oauth-engine"
	"github.com/giantswarm/oauth-engine/instrumentation"
	"github.com/giantswarm/oauth-engine/storage"
)

// ResourceFlow guards a protected resource with bearer tokens (RFC 6750)
type ResourceFlow struct {
	flowBase
	issuer   storage.Issuer
	required storage.Scope
}

// PrepareResource binds a ResourceFlow to ep. Every token must carry at
// least the required scope. The endpoint must provide an Issuer.
func PrepareResource(ep *Endpoint, required storage.Scope) (*ResourceFlow, error) {
	if ep == nil {
		return nil, &ConfigurationError{Flow: flowResource, Missing: []string{"endpoint"}}
	}
	if err := requireBindings(flowResource, map[string]bool{
		"issuer": ep.Issuer != nil,
	}); err != nil {
		return nil, err
	}
	return &ResourceFlow{
		flowBase: newFlowBase(flowResource, ep),
		issuer:   ep.Issuer,
		required: required,
	}, nil
}

// Execute validates the bearer token of req. On success the Response has
// StatusOK and carries the recovered Grant.
func (f *ResourceFlow) Execute(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.New("resource flow: request cannot be nil")
	}

	ctx, span := f.tracer.Start(ctx, instrumentation.SpanResource)
	defer span.End()

	token, ok := parseBearer(req.Authorization)
	if !ok {
		return f.challenge(ctx, span, oauth.NewOAuthError(oauth.ErrorCodeInvalidRequest, "missing bearer token", int(StatusUnauthorized))), nil
	}

	grant, err := f.issuer.RecoverToken(ctx, token)
	if err != nil {
		f.logger.Error("Failed to recover token", "error", err)
		oe := oauth.ErrServerError(err.Error())
		f.fail(ctx, span, oe)
		f.metrics.RecordResourceValidated(ctx, authResultError)
		return errorResponse(oe), nil
	}
	if grant == nil || f.expired(grant.Until) {
		return f.challenge(ctx, span, oauth.ErrInvalidToken("token is unknown or expired")), nil
	}
	instrumentation.AddOAuthFlowAttributes(span, grant.ClientID, grant.OwnerID, grant.Scope.String())

	if !f.required.SubsetOf(grant.Scope) {
		return f.challenge(ctx, span, oauth.ErrInsufficientScope("token scope is insufficient")), nil
	}

	f.metrics.RecordResourceValidated(ctx, "valid")
	instrumentation.SetSpanSuccess(span)
	return &Response{Status: StatusOK, Grant: grant}, nil
}

// challenge answers with a Bearer WWW-Authenticate challenge
func (f *ResourceFlow) challenge(ctx context.Context, span trace.Span, oe *oauth.OAuthError) *Response {
	f.fail(ctx, span, oe)
	f.metrics.RecordResourceValidated(ctx, oe.Code)

	resp := errorResponse(oe)
	resp.WWWAuthenticate = bearerChallenge(f.config.Realm, f.required, oe.Code)
	return resp
}

// bearerChallenge formats a challenge per RFC 6750 Section 3
func bearerChallenge(realm string, scope storage.Scope, code string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Bearer realm=%q", realm)
	if !scope.Empty() {
		fmt.Fprintf(&b, ", scope=%q", scope.String())
	}
	if code != "" {
		fmt.Fprintf(&b, ", error=%q", code)
	}
	return b.String()
}

// parseBearer extracts the token from an "Authorization: Bearer" header
func parseBearer(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
