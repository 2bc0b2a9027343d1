package server

import (
	"context"
	"errors"

	oauth "github.com/giantswarm/oauth-engine"
	"github.com/giantswarm/oauth-engine/instrumentation"
	"github.com/giantswarm/oauth-engine/internal/util"
	"github.com/giantswarm/oauth-engine/storage"
)

// RefreshFlow rotates refresh tokens (RFC 6749 Section 6)
type RefreshFlow struct {
	flowBase
	registrar storage.Registrar
	issuer    storage.Issuer
}

// PrepareRefresh binds a RefreshFlow to ep.
// The endpoint must provide a Registrar and an Issuer.
func PrepareRefresh(ep *Endpoint) (*RefreshFlow, error) {
	if ep == nil {
		return nil, &ConfigurationError{Flow: flowRefresh, Missing: []string{"endpoint"}}
	}
	if err := requireBindings(flowRefresh, map[string]bool{
		"registrar": ep.Registrar != nil,
		"issuer":    ep.Issuer != nil,
	}); err != nil {
		return nil, err
	}
	return &RefreshFlow{
		flowBase:  newFlowBase(flowRefresh, ep),
		registrar: ep.Registrar,
		issuer:    ep.Issuer,
	}, nil
}

// Execute processes one refresh request. The presented refresh token and
// the access token issued with it are invalidated on success.
func (f *RefreshFlow) Execute(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.New("refresh flow: request cannot be nil")
	}

	ctx, span := f.tracer.Start(ctx, instrumentation.SpanRefresh)
	defer span.End()

	if req.Body == nil {
		return f.tokenError(ctx, span, oauth.ErrInvalidRequest("missing request body")), nil
	}
	switch req.Body.Get("grant_type") {
	case GrantTypeRefreshToken:
	case "":
		return f.tokenError(ctx, span, oauth.ErrInvalidRequest("grant_type is required")), nil
	default:
		return f.tokenError(ctx, span, oauth.ErrUnsupportedGrantType("only refresh_token is supported")), nil
	}

	clientID, oe := f.authenticateClient(ctx, f.registrar, req)
	if oe != nil {
		return f.tokenError(ctx, span, oe), nil
	}

	refresh := req.Body.Get("refresh_token")
	if refresh == "" {
		return f.tokenError(ctx, span, oauth.ErrInvalidRequest("refresh_token is required")), nil
	}

	grant, err := f.issuer.RecoverRefresh(ctx, refresh)
	if err != nil {
		f.logger.Error("Failed to recover refresh token", "client_id", clientID, "error", err)
		return f.tokenError(ctx, span, oauth.ErrServerError(err.Error())), nil
	}
	if grant == nil || grant.ClientID != clientID {
		f.logger.Debug("Refresh token unknown or issued to another client",
			"client_id", clientID,
			"token_prefix", util.SafeTruncate(refresh, 8))
		f.auditor.LogInvalidGrant(clientID, "refresh token not found")
		return f.tokenError(ctx, span, oauth.ErrInvalidGrant("invalid refresh token")), nil
	}

	next := grant.Clone()
	if raw := req.Body.Get("scope"); raw != "" {
		scope, err := storage.ParseScope(raw)
		if err != nil {
			return f.tokenError(ctx, span, oauth.ErrInvalidScope("malformed scope")), nil
		}
		if !scope.SubsetOf(grant.Scope) {
			return f.tokenError(ctx, span, oauth.ErrInvalidScope("requested scope exceeds original grant")), nil
		}
		next.Scope = scope
	}
	instrumentation.AddOAuthFlowAttributes(span, clientID, next.OwnerID, next.Scope.String())

	token, err := f.issuer.Refresh(ctx, refresh, next)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrUnknownRefresh):
		// Rotated concurrently by another request.
		f.auditor.LogInvalidGrant(clientID, "refresh token already rotated")
		return f.tokenError(ctx, span, oauth.ErrInvalidGrant("invalid refresh token")), nil
	default:
		f.logger.Error("Failed to refresh token", "client_id", clientID, "error", err)
		return f.tokenError(ctx, span, oauth.ErrServerError(err.Error())), nil
	}

	f.logger.Info("Refresh token rotated",
		"client_id", clientID,
		"token_prefix", util.SafeTruncate(token.Token, 8))
	f.auditor.LogTokenRefreshed(next.OwnerID, clientID, next.Scope.String())
	f.metrics.RecordTokenRefresh(ctx, clientID)

	return f.tokenResponse(span, token, next.Scope), nil
}
