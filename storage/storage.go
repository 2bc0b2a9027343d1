package storage

import (
	"context"
	"errors"
)

// Sentinel errors returned by primitives. Implementations wrap them with
// context using fmt.Errorf("...: %w", err); callers match with errors.Is.
var (
	// ErrUnknownClient is returned when the client is not registered
	ErrUnknownClient = errors.New("unknown client")

	// ErrRedirectMismatch is returned when the redirect URI is not registered for the client
	ErrRedirectMismatch = errors.New("redirect uri mismatch")

	// ErrScopeExceeded is returned when the requested scope is not a subset of the registered scope
	ErrScopeExceeded = errors.New("requested scope exceeds registered scope")

	// ErrUnauthorizedClient is returned when client credentials do not verify
	ErrUnauthorizedClient = errors.New("unauthorized client")

	// ErrInvalidScope is returned when a scope string cannot be parsed
	ErrInvalidScope = errors.New("invalid scope")

	// ErrTokenCollision is returned when a generator produced a value that is already in use
	ErrTokenCollision = errors.New("generated token already in use")

	// ErrUnknownRefresh is returned when a refresh token is unknown, rotated or expired
	ErrUnknownRefresh = errors.New("unknown refresh token")
)

// BoundClient is the result of a successful Registrar validation: the client
// together with the redirect URI and scope the request is bound to.
type BoundClient struct {
	ClientID    string
	RedirectURI string
	Scope       Scope
	Kind        ClientKind
}

// Registrar defines the interface for client lookup and validation.
// Implementations are read-only with respect to the request.
// All methods accept context.Context for tracing and cancellation.
type Registrar interface {
	// Validate binds a request to a registered client. An empty redirectURI
	// binds the registered default; otherwise it must match a registered
	// value literally. An empty scope binds the client's default scope;
	// otherwise it must be a subset of it.
	Validate(ctx context.Context, clientID, redirectURI string, scope Scope) (BoundClient, error)

	// Check verifies client credentials. Public clients must not present a
	// secret; confidential clients must present the registered one.
	Check(ctx context.Context, clientID string, secret []byte) error
}

// Authorizer defines the interface for minting and consuming authorization codes.
// All methods accept context.Context for tracing and cancellation.
type Authorizer interface {
	// Authorize stores the grant under a freshly generated code and returns the code
	Authorize(ctx context.Context, grant Grant) (string, error)

	// Extract atomically looks up and removes the grant stored under code.
	// Returns nil and no error if the code is unknown, consumed or expired.
	// SECURITY: a code must never yield a grant twice.
	Extract(ctx context.Context, code string) (*Grant, error)
}

// Issuer defines the interface for minting and recovering tokens.
// All methods accept context.Context for tracing and cancellation.
type Issuer interface {
	// Issue mints an access token (and optionally a refresh token) for grant
	Issue(ctx context.Context, grant Grant) (IssuedToken, error)

	// Refresh rotates refresh, invalidating the token pair it belonged to,
	// and issues a new pair for grant
	Refresh(ctx context.Context, refresh string, grant Grant) (IssuedToken, error)

	// RecoverToken returns the grant an access token was issued for.
	// Returns nil and no error if the token is unknown or expired.
	RecoverToken(ctx context.Context, token string) (*Grant, error)

	// RecoverRefresh returns the grant a refresh token was issued for.
	// Returns nil and no error if the token is unknown or expired.
	RecoverRefresh(ctx context.Context, token string) (*Grant, error)
}
