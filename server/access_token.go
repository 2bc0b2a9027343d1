package server

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	oauth "github.com/giantswarm/oauth-engine"
	"github.com/giantswarm/oauth-engine/instrumentation"
	"github.com/giantswarm/oauth-engine/internal/util"
	"github.com/giantswarm/oauth-engine/storage"
)

// AccessTokenFlow exchanges authorization codes for tokens
// (RFC 6749 Section 4.1.3).
type AccessTokenFlow struct {
	flowBase
	registrar  storage.Registrar
	authorizer storage.Authorizer
	issuer     storage.Issuer
}

// PrepareAccessToken binds an AccessTokenFlow to ep.
// The endpoint must provide a Registrar, an Authorizer and an Issuer.
func PrepareAccessToken(ep *Endpoint) (*AccessTokenFlow, error) {
	if ep == nil {
		return nil, &ConfigurationError{Flow: flowAccessToken, Missing: []string{"endpoint"}}
	}
	if err := requireBindings(flowAccessToken, map[string]bool{
		"registrar":  ep.Registrar != nil,
		"authorizer": ep.Authorizer != nil,
		"issuer":     ep.Issuer != nil,
	}); err != nil {
		return nil, err
	}
	return &AccessTokenFlow{
		flowBase:   newFlowBase(flowAccessToken, ep),
		registrar:  ep.Registrar,
		authorizer: ep.Authorizer,
		issuer:     ep.Issuer,
	}, nil
}

// Execute processes one token request. The authorization code is consumed
// as soon as it is extracted, whether or not the exchange succeeds.
func (f *AccessTokenFlow) Execute(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.New("access token flow: request cannot be nil")
	}

	ctx, span := f.tracer.Start(ctx, instrumentation.SpanAccessToken)
	defer span.End()

	if req.Body == nil {
		return f.tokenError(ctx, span, oauth.ErrInvalidRequest("missing request body")), nil
	}

	grantType := req.Body.Get("grant_type")
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrGrantType, grantType))
	switch grantType {
	case GrantTypeAuthorizationCode:
	case "":
		return f.tokenError(ctx, span, oauth.ErrInvalidRequest("grant_type is required")), nil
	default:
		return f.tokenError(ctx, span, oauth.ErrUnsupportedGrantType("only authorization_code is supported")), nil
	}

	clientID, oe := f.authenticateClient(ctx, f.registrar, req)
	if oe != nil {
		return f.tokenError(ctx, span, oe), nil
	}
	instrumentation.AddOAuthFlowAttributes(span, clientID, "", "")

	code := req.Body.Get("code")
	if code == "" {
		return f.tokenError(ctx, span, oauth.ErrInvalidRequest("code is required")), nil
	}

	bound, err := f.registrar.Validate(ctx, clientID, req.Body.Get("redirect_uri"), storage.Scope{})
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrUnknownClient):
		return f.tokenError(ctx, span, oauth.ErrInvalidClient("unknown client")), nil
	case errors.Is(err, storage.ErrRedirectMismatch):
		return f.tokenError(ctx, span, oauth.ErrInvalidGrant("redirect_uri mismatch")), nil
	default:
		f.logger.Error("Registrar failed to validate client", "client_id", clientID, "error", err)
		return f.tokenError(ctx, span, oauth.ErrServerError(err.Error())), nil
	}

	grant, err := f.authorizer.Extract(ctx, code)
	if err != nil {
		f.logger.Error("Failed to extract authorization code",
			"client_id", clientID,
			"code_prefix", util.SafeTruncate(code, 8),
			"error", err)
		return f.tokenError(ctx, span, oauth.ErrServerError(err.Error())), nil
	}
	if grant == nil {
		f.logger.Debug("Authorization code unknown, consumed or expired",
			"client_id", clientID,
			"code_prefix", util.SafeTruncate(code, 8))
		f.auditor.LogInvalidGrant(clientID, "authorization code not found")
		return f.tokenError(ctx, span, oauth.ErrInvalidGrant("invalid authorization code")), nil
	}

	if grant.ClientID != clientID || grant.RedirectURI != bound.RedirectURI {
		f.logger.Warn("Authorization code presented by wrong client or with wrong redirect_uri",
			"client_id", clientID,
			"code_prefix", util.SafeTruncate(code, 8))
		f.auditor.LogInvalidGrant(clientID, "authorization code binding mismatch")
		return f.tokenError(ctx, span, oauth.ErrInvalidGrant("authorization code was not issued to this client")), nil
	}
	if f.expired(grant.Until) {
		f.auditor.LogInvalidGrant(clientID, "authorization code expired")
		return f.tokenError(ctx, span, oauth.ErrInvalidGrant("authorization code expired")), nil
	}

	method := storedMethod(*grant)
	instrumentation.AddPKCEAttributes(span, method)

	if key, oe := f.addons.runTokenExchange(ctx, req.Body, grant); oe != nil {
		f.logger.Debug("Addon rejected token exchange", "client_id", clientID, "addon", key, "error", oe.Code)
		if key == PKCEKey {
			f.auditor.LogInvalidPKCE(grant.OwnerID, clientID, method)
			f.metrics.RecordPKCEValidationFailed(ctx, method)
		}
		return f.tokenError(ctx, span, oe), nil
	}

	token, err := f.issuer.Issue(ctx, *grant)
	if err != nil {
		f.logger.Error("Failed to issue token", "client_id", clientID, "error", err)
		return f.tokenError(ctx, span, oauth.ErrServerError(err.Error())), nil
	}

	f.logger.Info("Authorization code exchanged",
		"client_id", clientID,
		"token_prefix", util.SafeTruncate(token.Token, 8),
		"refreshable", token.Refreshable())
	f.auditor.LogTokenIssued(grant.OwnerID, clientID, grant.Scope.String(), token.Refreshable())
	f.metrics.RecordCodeExchange(ctx, clientID, method)
	instrumentation.AddOAuthFlowAttributes(span, "", grant.OwnerID, grant.Scope.String())

	return f.tokenResponse(span, token, grant.Scope), nil
}
