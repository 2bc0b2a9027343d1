package storage

import (
	"fmt"
	"slices"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ClientKind distinguishes public from confidential clients
type ClientKind int

const (
	// ClientPublic clients cannot keep a secret (SPAs, native apps)
	ClientPublic ClientKind = iota

	// ClientConfidential clients authenticate with a secret
	ClientConfidential
)

// Client type string values
const (
	ClientTypePublic       = "public"
	ClientTypeConfidential = "confidential"
)

// String returns the client type as used in logs and audit events
func (k ClientKind) String() string {
	if k == ClientConfidential {
		return ClientTypeConfidential
	}
	return ClientTypePublic
}

// Client represents a registered OAuth client
type Client struct {
	ID                     string
	RedirectURI            string   // default redirect URI
	AdditionalRedirectURIs []string // further registered redirect URIs
	DefaultScope           Scope    // registered scope, upper bound for every grant
	Kind                   ClientKind
	SecretHash             []byte // bcrypt hash, confidential clients only
	CreatedAt              time.Time
}

// NewPublicClient creates a public client
func NewPublicClient(id, redirectURI string, scope Scope) *Client {
	return &Client{
		ID:           id,
		RedirectURI:  redirectURI,
		DefaultScope: scope,
		Kind:         ClientPublic,
		CreatedAt:    time.Now(),
	}
}

// NewConfidentialClient creates a confidential client, storing secret as a bcrypt hash
func NewConfidentialClient(id, redirectURI string, scope Scope, secret []byte) (*Client, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("confidential client %q requires a secret", id)
	}
	hash, err := bcrypt.GenerateFromPassword(secret, bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash client secret: %w", err)
	}
	return &Client{
		ID:           id,
		RedirectURI:  redirectURI,
		DefaultScope: scope,
		Kind:         ClientConfidential,
		SecretHash:   hash,
		CreatedAt:    time.Now(),
	}, nil
}

// RedirectAllowed reports whether uri is registered for the client.
// Comparison is literal; no normalization of trailing slashes or query strings.
func (c *Client) RedirectAllowed(uri string) bool {
	return uri == c.RedirectURI || slices.Contains(c.AdditionalRedirectURIs, uri)
}

// CheckSecret verifies the presented secret against the client's registration
func (c *Client) CheckSecret(secret []byte) error {
	switch c.Kind {
	case ClientPublic:
		if len(secret) != 0 {
			return fmt.Errorf("%w: public client presented a secret", ErrUnauthorizedClient)
		}
		return nil
	default:
		if len(secret) == 0 {
			return fmt.Errorf("%w: missing client secret", ErrUnauthorizedClient)
		}
		if err := bcrypt.CompareHashAndPassword(c.SecretHash, secret); err != nil {
			return fmt.Errorf("%w: invalid client secret", ErrUnauthorizedClient)
		}
		return nil
	}
}
