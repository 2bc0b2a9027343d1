package server

import (
	"context"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	oauth "github.com/giantswarm/oauth-engine"
	"github.com/giantswarm/oauth-engine/internal/util"
	"github.com/giantswarm/oauth-engine/storage"
)

// PKCE methods (RFC 7636 Section 4.2)
const (
	PKCEMethodPlain = "plain"
	PKCEMethodS256  = "S256"
)

// PKCEKey is the grant extension key owned by the PKCE addon
const PKCEKey = "pkce"

// PKCE implements Proof Key for Code Exchange (RFC 7636) as an addon.
// The challenge is stored in the grant as "method:challenge".
type PKCE struct {
	required bool
}

// NewPKCE creates the addon. When required, every authorization request
// must carry a code_challenge.
func NewPKCE(required bool) *PKCE {
	return &PKCE{required: required}
}

// RequiredPKCE rejects authorization requests without a challenge
func RequiredPKCE() *PKCE { return NewPKCE(true) }

// OptionalPKCE verifies a challenge only when the client sent one
func OptionalPKCE() *PKCE { return NewPKCE(false) }

// Required reports whether a challenge is mandatory
func (p *PKCE) Required() bool { return p.required }

// Key implements Addon
func (p *PKCE) Key() string { return PKCEKey }

// OnCodeIssuance records code_challenge and code_challenge_method
func (p *PKCE) OnCodeIssuance(_ context.Context, params url.Values, grant *storage.Grant) error {
	challenge := params.Get("code_challenge")
	method := params.Get("code_challenge_method")

	if challenge == "" {
		if p.required {
			return oauth.ErrInvalidRequest("code_challenge is required")
		}
		grant.DeleteExtension(PKCEKey)
		return nil
	}

	if method == "" {
		method = PKCEMethodPlain
	}
	if method != PKCEMethodPlain && method != PKCEMethodS256 {
		return oauth.ErrInvalidRequest("unsupported code_challenge_method")
	}

	grant.SetExtension(PKCEKey, method+":"+challenge)
	return nil
}

// OnTokenExchange verifies code_verifier against the stored challenge
func (p *PKCE) OnTokenExchange(_ context.Context, params url.Values, grant *storage.Grant) error {
	stored, ok := grant.Extensions.Get(PKCEKey)
	if !ok {
		if p.required {
			return oauth.ErrInvalidRequest("authorization code was not bound to a code_challenge")
		}
		return nil
	}

	method, challenge, found := strings.Cut(stored, ":")
	if !found {
		return oauth.ErrServerError("corrupt pkce extension")
	}

	verifier := params.Get("code_verifier")
	if verifier == "" {
		return oauth.ErrInvalidRequest("code_verifier is required")
	}
	if !VerifyChallenge(method, challenge, verifier) {
		return oauth.ErrInvalidRequest("code_verifier does not match code_challenge")
	}
	return nil
}

// storedMethod returns the PKCE method bound to grant, or "" if none
func storedMethod(grant storage.Grant) string {
	stored, ok := grant.Extensions.Get(PKCEKey)
	if !ok {
		return ""
	}
	method, _, _ := strings.Cut(stored, ":")
	return method
}

// VerifyChallenge reports whether verifier matches challenge under method.
// plain compares bytes in constant time; S256 compares
// BASE64URL-NOPAD(SHA256(verifier)) with challenge.
func VerifyChallenge(method, challenge, verifier string) bool {
	switch method {
	case PKCEMethodPlain:
		return util.ConstantTimeEqual(verifier, challenge)
	case PKCEMethodS256:
		return util.ConstantTimeEqual(oauth2.S256ChallengeFromVerifier(verifier), challenge)
	default:
		return false
	}
}

var (
	_ CodeIssuanceHook  = (*PKCE)(nil)
	_ TokenExchangeHook = (*PKCE)(nil)
)
