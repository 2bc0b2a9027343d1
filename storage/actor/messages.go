package actor

import (
	"context"

	"github.com/giantswarm/oauth-engine/storage"
)

// Registrar messages

// Validate asks a Registrar to bind a request to a client
type Validate struct {
	ClientID    string
	RedirectURI string
	Scope       storage.Scope
}

// Name implements Message
func (Validate) Name() string { return "Validate" }

// Handle runs Validate against the actor's Registrar
func (m Validate) Handle(ctx context.Context, r storage.Registrar) (storage.BoundClient, error) {
	return r.Validate(ctx, m.ClientID, m.RedirectURI, m.Scope)
}

// Check asks a Registrar to verify client credentials
type Check struct {
	ClientID string
	Secret   []byte
}

// Name implements Message
func (Check) Name() string { return "Check" }

// Handle runs Check against the actor's Registrar
func (m Check) Handle(ctx context.Context, r storage.Registrar) (struct{}, error) {
	return struct{}{}, r.Check(ctx, m.ClientID, m.Secret)
}

// Authorizer messages

// Authorize asks an Authorizer to mint a code for a grant
type Authorize struct {
	Grant storage.Grant
}

// Name implements Message
func (Authorize) Name() string { return "Authorize" }

// Handle runs Authorize against the actor's Authorizer
func (m Authorize) Handle(ctx context.Context, a storage.Authorizer) (string, error) {
	return a.Authorize(ctx, m.Grant)
}

// Extract asks an Authorizer to consume a code
type Extract struct {
	Code string
}

// Name implements Message
func (Extract) Name() string { return "Extract" }

// Handle runs Extract against the actor's Authorizer
func (m Extract) Handle(ctx context.Context, a storage.Authorizer) (*storage.Grant, error) {
	return a.Extract(ctx, m.Code)
}

// Issuer messages

// Issue asks an Issuer to mint tokens for a grant
type Issue struct {
	Grant storage.Grant
}

// Name implements Message
func (Issue) Name() string { return "Issue" }

// Handle runs Issue against the actor's Issuer
func (m Issue) Handle(ctx context.Context, i storage.Issuer) (storage.IssuedToken, error) {
	return i.Issue(ctx, m.Grant)
}

// Refresh asks an Issuer to rotate a refresh token
type Refresh struct {
	Refresh string
	Grant   storage.Grant
}

// Name implements Message
func (Refresh) Name() string { return "Refresh" }

// Handle runs Refresh against the actor's Issuer
func (m Refresh) Handle(ctx context.Context, i storage.Issuer) (storage.IssuedToken, error) {
	return i.Refresh(ctx, m.Refresh, m.Grant)
}

// RecoverToken asks an Issuer for the grant behind an access token
type RecoverToken struct {
	Token string
}

// Name implements Message
func (RecoverToken) Name() string { return "RecoverToken" }

// Handle runs RecoverToken against the actor's Issuer
func (m RecoverToken) Handle(ctx context.Context, i storage.Issuer) (*storage.Grant, error) {
	return i.RecoverToken(ctx, m.Token)
}

// RecoverRefresh asks an Issuer for the grant behind a refresh token
type RecoverRefresh struct {
	Token string
}

// Name implements Message
func (RecoverRefresh) Name() string { return "RecoverRefresh" }

// Handle runs RecoverRefresh against the actor's Issuer
func (m RecoverRefresh) Handle(ctx context.Context, i storage.Issuer) (*storage.Grant, error) {
	return i.RecoverRefresh(ctx, m.Token)
}

var (
	_ Message[storage.Registrar, storage.BoundClient] = Validate{}
	_ Message[storage.Registrar, struct{}]            = Check{}
	_ Message[storage.Authorizer, string]             = Authorize{}
	_ Message[storage.Authorizer, *storage.Grant]     = Extract{}
	_ Message[storage.Issuer, storage.IssuedToken]    = Issue{}
	_ Message[storage.Issuer, storage.IssuedToken]    = Refresh{}
	_ Message[storage.Issuer, *storage.Grant]         = RecoverToken{}
	_ Message[storage.Issuer, *storage.Grant]         = RecoverRefresh{}
)
