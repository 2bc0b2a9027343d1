package actor

import (
	"context"
	"slices"

	"github.com/giantswarm/oauth-engine/storage"
)

// Registrar hosts a storage.Registrar behind an actor
type Registrar struct {
	addr *Addr[storage.Registrar]
}

// NewRegistrar spawns an actor owning inner
func NewRegistrar(inner storage.Registrar, opts ...Option) *Registrar {
	return &Registrar{addr: Spawn(inner, withDefaultName("registrar", opts)...)}
}

// Validate implements storage.Registrar
func (r *Registrar) Validate(ctx context.Context, clientID, redirectURI string, scope storage.Scope) (storage.BoundClient, error) {
	return Send[storage.Registrar, storage.BoundClient](ctx, r.addr, Validate{
		ClientID:    clientID,
		RedirectURI: redirectURI,
		Scope:       scope,
	})
}

// Check implements storage.Registrar
func (r *Registrar) Check(ctx context.Context, clientID string, secret []byte) error {
	_, err := Send[storage.Registrar, struct{}](ctx, r.addr, Check{
		ClientID: clientID,
		Secret:   slices.Clone(secret),
	})
	return err
}

// Stop stops the actor
func (r *Registrar) Stop() { r.addr.Stop() }

// Authorizer hosts a storage.Authorizer behind an actor.
// Extract calls are serialized, so racing exchanges of the same code see
// the grant exactly once even if inner is not itself synchronized.
type Authorizer struct {
	addr *Addr[storage.Authorizer]
}

// NewAuthorizer spawns an actor owning inner
func NewAuthorizer(inner storage.Authorizer, opts ...Option) *Authorizer {
	return &Authorizer{addr: Spawn(inner, withDefaultName("authorizer", opts)...)}
}

// Authorize implements storage.Authorizer
func (a *Authorizer) Authorize(ctx context.Context, grant storage.Grant) (string, error) {
	return Send[storage.Authorizer, string](ctx, a.addr, Authorize{Grant: grant.Clone()})
}

// Extract implements storage.Authorizer
func (a *Authorizer) Extract(ctx context.Context, code string) (*storage.Grant, error) {
	return Send[storage.Authorizer, *storage.Grant](ctx, a.addr, Extract{Code: code})
}

// Stop stops the actor
func (a *Authorizer) Stop() { a.addr.Stop() }

// Issuer hosts a storage.Issuer behind an actor
type Issuer struct {
	addr *Addr[storage.Issuer]
}

// NewIssuer spawns an actor owning inner
func NewIssuer(inner storage.Issuer, opts ...Option) *Issuer {
	return &Issuer{addr: Spawn(inner, withDefaultName("issuer", opts)...)}
}

// Issue implements storage.Issuer
func (i *Issuer) Issue(ctx context.Context, grant storage.Grant) (storage.IssuedToken, error) {
	return Send[storage.Issuer, storage.IssuedToken](ctx, i.addr, Issue{Grant: grant.Clone()})
}

// Refresh implements storage.Issuer
func (i *Issuer) Refresh(ctx context.Context, refresh string, grant storage.Grant) (storage.IssuedToken, error) {
	return Send[storage.Issuer, storage.IssuedToken](ctx, i.addr, Refresh{Refresh: refresh, Grant: grant.Clone()})
}

// RecoverToken implements storage.Issuer
func (i *Issuer) RecoverToken(ctx context.Context, token string) (*storage.Grant, error) {
	return Send[storage.Issuer, *storage.Grant](ctx, i.addr, RecoverToken{Token: token})
}

// RecoverRefresh implements storage.Issuer
func (i *Issuer) RecoverRefresh(ctx context.Context, token string) (*storage.Grant, error) {
	return Send[storage.Issuer, *storage.Grant](ctx, i.addr, RecoverRefresh{Token: token})
}

// Stop stops the actor
func (i *Issuer) Stop() { i.addr.Stop() }

var (
	_ storage.Registrar  = (*Registrar)(nil)
	_ storage.Authorizer = (*Authorizer)(nil)
	_ storage.Issuer     = (*Issuer)(nil)
)

func withDefaultName(name string, opts []Option) []Option {
	return append([]Option{WithName(name)}, opts...)
}
