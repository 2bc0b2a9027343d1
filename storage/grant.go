package storage

import (
	"maps"
	"time"
)

// Extensions holds per-addon data attached to a grant, keyed by addon key.
// Values are opaque to everything but the addon that wrote them.
type Extensions map[string]string

// Get returns the value stored under key (nil-safe)
func (e Extensions) Get(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	v, ok := e[key]
	return v, ok
}

// Clone returns a copy of the extension map
func (e Extensions) Clone() Extensions {
	if e == nil {
		return nil
	}
	return maps.Clone(e)
}

// Grant is the record of an authorization approved by a resource owner.
// It is created by the authorization flow and owned by the Authorizer while
// pending as a code, then by the Issuer once exchanged for a token.
type Grant struct {
	// ClientID is the client the grant was issued to
	ClientID string

	// OwnerID identifies the resource owner who approved the grant
	OwnerID string

	// RedirectURI is the redirect URI bound during authorization
	RedirectURI string

	// Scope is always a subset of the client's registered scope
	Scope Scope

	// Extensions carries addon data, e.g. the PKCE challenge
	Extensions Extensions

	// Until is the instant the grant stops being valid
	Until time.Time
}

// Clone returns a deep copy of the grant
func (g Grant) Clone() Grant {
	g.Extensions = g.Extensions.Clone()
	return g
}

// SetExtension stores value under key
func (g *Grant) SetExtension(key, value string) {
	if g.Extensions == nil {
		g.Extensions = make(Extensions)
	}
	g.Extensions[key] = value
}

// DeleteExtension removes the value stored under key
func (g *Grant) DeleteExtension(key string) {
	delete(g.Extensions, key)
}

// Expired reports whether the grant is no longer valid at now.
// A zero Until never expires.
func (g Grant) Expired(now time.Time) bool {
	return !g.Until.IsZero() && !now.Before(g.Until)
}
