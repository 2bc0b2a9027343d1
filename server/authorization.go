package server

import (
	"context"
	"errors"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	oauth "github.com/giantswarm/oauth-engine"
	"github.com/giantswarm/oauth-engine/instrumentation"
	"github.com/giantswarm/oauth-engine/internal/util"
	"github.com/giantswarm/oauth-engine/storage"
)

// Authorization request outcomes recorded in oauth.authorization.requests
const (
	authResultIssued   = "issued"
	authResultDenied   = "denied"
	authResultRejected = "rejected"
	authResultError    = "error"
)

// AuthorizationFlow handles authorization requests (RFC 6749 Section 4.1.1)
// and answers them with a code or an error redirect.
type AuthorizationFlow struct {
	flowBase
	registrar  storage.Registrar
	authorizer storage.Authorizer
	solicitor  Solicitor
}

// PrepareAuthorization binds an AuthorizationFlow to ep.
// The endpoint must provide a Registrar, an Authorizer and a Solicitor.
func PrepareAuthorization(ep *Endpoint) (*AuthorizationFlow, error) {
	if ep == nil {
		return nil, &ConfigurationError{Flow: flowAuthorization, Missing: []string{"endpoint"}}
	}
	if err := requireBindings(flowAuthorization, map[string]bool{
		"registrar":  ep.Registrar != nil,
		"authorizer": ep.Authorizer != nil,
		"solicitor":  ep.Solicitor != nil,
	}); err != nil {
		return nil, err
	}
	return &AuthorizationFlow{
		flowBase:   newFlowBase(flowAuthorization, ep),
		registrar:  ep.Registrar,
		authorizer: ep.Authorizer,
		solicitor:  ep.Solicitor,
	}, nil
}

// Execute processes one authorization request. Protocol failures are
// reported in the Response; the error is only set for a nil request.
func (f *AuthorizationFlow) Execute(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.New("authorization flow: request cannot be nil")
	}

	ctx, span := f.tracer.Start(ctx, instrumentation.SpanAuthorization)
	defer span.End()

	if req.Query == nil {
		return f.reject(ctx, span, oauth.ErrInvalidRequest("missing query")), nil
	}
	clientID := req.Query.Get("client_id")
	if clientID == "" {
		return f.reject(ctx, span, oauth.ErrInvalidRequest("client_id is required")), nil
	}
	instrumentation.AddOAuthFlowAttributes(span, clientID, "", "")

	// Bind the redirect URI first. Until it is verified, errors are never
	// redirected.
	requested := req.Query.Get("redirect_uri")
	bound, err := f.registrar.Validate(ctx, clientID, requested, storage.Scope{})
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrUnknownClient):
		f.logger.Debug("Unknown client", "client_id", clientID)
		return f.reject(ctx, span, oauth.NewOAuthError(oauth.ErrorCodeInvalidClient, "unknown client", int(StatusBadRequest))), nil
	case errors.Is(err, storage.ErrRedirectMismatch):
		f.logger.Debug("Redirect URI not registered", "client_id", clientID)
		f.auditor.LogInvalidRedirect(clientID, requested)
		return f.reject(ctx, span, oauth.ErrInvalidRequest("redirect_uri is not registered for this client")), nil
	default:
		f.logger.Error("Registrar failed to validate client", "client_id", clientID, "error", err)
		return f.reject(ctx, span, oauth.ErrServerError(err.Error())), nil
	}

	state := req.Query.Get("state")
	redirectURI := bound.RedirectURI

	if raw := req.Query.Get("scope"); raw != "" {
		scope, err := storage.ParseScope(raw)
		if err != nil {
			return f.redirectError(ctx, span, redirectURI, oauth.ErrInvalidScope("malformed scope"), state), nil
		}
		scoped, err := f.registrar.Validate(ctx, clientID, redirectURI, scope)
		switch {
		case err == nil:
			bound = scoped
		case errors.Is(err, storage.ErrScopeExceeded):
			f.logger.Debug("Requested scope exceeds registered scope", "client_id", clientID, "scope", raw)
			return f.redirectError(ctx, span, redirectURI, oauth.ErrInvalidScope("requested scope exceeds registered scope"), state), nil
		default:
			f.logger.Error("Registrar failed to validate scope", "client_id", clientID, "error", err)
			return f.redirectError(ctx, span, redirectURI, oauth.ErrServerError(err.Error()), state), nil
		}
	}

	responseType := req.Query.Get("response_type")
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrResponseType, responseType))
	if responseType != "code" {
		return f.redirectError(ctx, span, redirectURI, oauth.ErrUnsupportedResponseType("only response_type=code is supported"), state), nil
	}

	candidate := storage.Grant{
		ClientID:    clientID,
		RedirectURI: redirectURI,
		Scope:       bound.Scope,
		Until:       f.now().Add(f.config.codeTTL()),
	}

	decision := f.solicitor.Solicit(ctx, req, candidate.Clone())
	if !decision.Allowed() {
		f.auditor.LogAccessDenied("", clientID)
		f.metrics.RecordAuthorizationRequest(ctx, authResultDenied)
		f.fail(ctx, span, oauth.ErrAccessDenied(""))
		return errorRedirect(redirectURI, oauth.ErrAccessDenied(""), state), nil
	}
	if decision.OwnerID() == "" {
		f.logger.Error("Solicitor approved without an owner", "client_id", clientID)
		return f.redirectError(ctx, span, redirectURI, oauth.ErrServerError("approval without owner"), state), nil
	}

	grant := candidate
	grant.OwnerID = decision.OwnerID()
	instrumentation.AddOAuthFlowAttributes(span, "", grant.OwnerID, grant.Scope.String())

	if key, oe := f.addons.runCodeIssuance(ctx, req.Query, &grant); oe != nil {
		f.logger.Debug("Addon rejected authorization request", "client_id", clientID, "addon", key, "error", oe.Code)
		return f.redirectError(ctx, span, redirectURI, oe, state), nil
	}
	instrumentation.AddPKCEAttributes(span, storedMethod(grant))

	code, err := f.authorizer.Authorize(ctx, grant)
	if err != nil {
		f.logger.Error("Failed to issue authorization code", "client_id", clientID, "error", err)
		return f.redirectError(ctx, span, redirectURI, oauth.ErrServerError(err.Error()), state), nil
	}

	f.logger.Info("Authorization code issued",
		"client_id", clientID,
		"code_prefix", util.SafeTruncate(code, 8),
		"scope", grant.Scope.String())
	f.auditor.LogCodeIssued(grant.OwnerID, clientID, grant.Scope.String())
	f.metrics.RecordAuthorizationRequest(ctx, authResultIssued)
	f.metrics.RecordCodeIssued(ctx, clientID)
	instrumentation.SetSpanSuccess(span)

	params := url.Values{"code": {code}}
	if state != "" {
		params.Set("state", state)
	}
	return redirectResponse(redirectURI, params), nil
}

// reject answers with a JSON error instead of a redirect
func (f *AuthorizationFlow) reject(ctx context.Context, span trace.Span, oe *oauth.OAuthError) *Response {
	f.fail(ctx, span, oe)
	f.metrics.RecordAuthorizationRequest(ctx, resultFor(oe))
	return errorResponse(oe)
}

// redirectError delivers oe to the verified redirect URI
func (f *AuthorizationFlow) redirectError(ctx context.Context, span trace.Span, redirectURI string, oe *oauth.OAuthError, state string) *Response {
	f.fail(ctx, span, oe)
	f.metrics.RecordAuthorizationRequest(ctx, resultFor(oe))
	return errorRedirect(redirectURI, oe, state)
}

func resultFor(oe *oauth.OAuthError) string {
	if oe.Code == oauth.ErrorCodeServerError {
		return authResultError
	}
	return authResultRejected
}
