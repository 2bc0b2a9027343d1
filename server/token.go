package server

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	oauth "github.com/giantswarm/oauth-engine"
	"github.com/giantswarm/oauth-engine/instrumentation"
	"github.com/giantswarm/oauth-engine/storage"
)

// Grant types accepted at the token endpoint
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token" //nolint:gosec // grant type name, not a credential
)

// authenticateClient resolves and verifies the credentials of a token request.
// The returned OAuthError is ready to be rendered with tokenError.
func (b *flowBase) authenticateClient(ctx context.Context, registrar storage.Registrar, req *Request) (string, *oauth.OAuthError) {
	creds, oe := extractClientCredentials(req, b.config.AllowCredentialsInBody)
	if oe != nil {
		b.auditor.LogAuthFailure(creds.clientID, oe.Description)
		return "", oe
	}

	err := registrar.Check(ctx, creds.clientID, creds.secret)
	switch {
	case err == nil:
		return creds.clientID, nil
	case errors.Is(err, storage.ErrUnknownClient), errors.Is(err, storage.ErrUnauthorizedClient):
		b.logger.Debug("Client authentication failed", "client_id", creds.clientID, "basic", creds.viaBasic)
		b.auditor.LogAuthFailure(creds.clientID, "invalid credentials")
		return "", oauth.ErrInvalidClient("client authentication failed")
	default:
		b.logger.Error("Registrar failed to check client", "client_id", creds.clientID, "error", err)
		return "", oauth.ErrServerError(err.Error())
	}
}

// tokenError renders oe for the token endpoint. invalid_client carries a
// Basic challenge.
func (b *flowBase) tokenError(ctx context.Context, span trace.Span, oe *oauth.OAuthError) *Response {
	b.fail(ctx, span, oe)
	resp := errorResponse(oe)
	if oe.Code == oauth.ErrorCodeInvalidClient {
		resp.WWWAuthenticate = fmt.Sprintf("Basic realm=%q", b.config.Realm)
	}
	return resp
}

// tokenResponse renders a successful Issue or Refresh
func (b *flowBase) tokenResponse(span trace.Span, token storage.IssuedToken, scope storage.Scope) *Response {
	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = storage.TokenTypeBearer
	}
	expiresIn := token.ExpiresIn(b.now())

	instrumentation.AddTokenAttributes(span, tokenType, expiresIn, token.Refreshable())
	instrumentation.SetSpanSuccess(span)

	return jsonResponse(StatusOK, oauth.TokenResponse{
		AccessToken:  token.Token,
		TokenType:    tokenType,
		ExpiresIn:    expiresIn,
		RefreshToken: token.Refresh,
		Scope:        scope.String(),
	})
}
