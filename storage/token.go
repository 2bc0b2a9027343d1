package storage

import (
	"time"

	"golang.org/x/oauth2"
)

// TokenTypeBearer is the token type of every token minted by this engine
const TokenTypeBearer = "Bearer"

// IssuedToken is the result of a successful Issue or Refresh
type IssuedToken struct {
	Token     string    // access token
	Refresh   string    // refresh token, empty if none was issued
	Until     time.Time // access token expiry
	TokenType string
}

// Refreshable reports whether a refresh token was issued
func (t IssuedToken) Refreshable() bool {
	return t.Refresh != ""
}

// ExpiresIn returns the remaining lifetime in whole seconds at now, never negative
func (t IssuedToken) ExpiresIn(now time.Time) int64 {
	if t.Until.IsZero() {
		return 0
	}
	secs := int64(t.Until.Sub(now) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// Generator produces the opaque strings used as authorization codes and tokens.
// It is injected into Authorizer and Issuer implementations so tests can
// substitute deterministic sequences.
type Generator interface {
	Generate(grant Grant) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface
type GeneratorFunc func(grant Grant) (string, error)

// Generate calls f(grant)
func (f GeneratorFunc) Generate(grant Grant) (string, error) {
	return f(grant)
}

// RandomGenerator produces cryptographically secure, URL-safe random tokens.
// This uses oauth2.GenerateVerifier(), which yields 32 bytes of entropy
// encoded as unpadded base64url.
type RandomGenerator struct{}

// Generate returns a fresh random token; the grant is not inspected
func (RandomGenerator) Generate(Grant) (string, error) {
	return oauth2.GenerateVerifier(), nil
}
