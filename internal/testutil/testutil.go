package testutil

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/oauth-engine/storage"
)

// Fixture values shared by package tests
const (
	TestClientID     = "test-client-id"
	TestRedirectURI  = "https://client.example.com/endpoint"
	TestOwnerID      = "test-owner"
	TestClientSecret = "test-client-secret"
	TestScope        = "default-scope read write"
)

// RFC 7636 Appendix B example values
const (
	RFC7636Verifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	RFC7636Challenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

// MockTime provides a controllable time source for deterministic testing
type MockTime struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockTime creates a new mock time provider
func NewMockTime(t time.Time) *MockTime {
	return &MockTime{now: t}
}

// Now returns the current mock time
func (m *MockTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock time forward by the given duration
func (m *MockTime) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set sets the mock time to a specific value
func (m *MockTime) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// FixedGenerator always returns the same token
type FixedGenerator string

// Generate returns the fixed token
func (g FixedGenerator) Generate(storage.Grant) (string, error) {
	return string(g), nil
}

// SequenceGenerator returns "<prefix>-1", "<prefix>-2", ... and is safe for concurrent use
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewSequenceGenerator creates a deterministic generator with the given prefix
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next token in the sequence
func (g *SequenceGenerator) Generate(storage.Grant) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("%s-%d", g.prefix, g.next), nil
}

// FailingGenerator always fails
type FailingGenerator struct{}

// Generate returns an error
func (FailingGenerator) Generate(storage.Grant) (string, error) {
	return "", fmt.Errorf("generator exhausted")
}

// GeneratePKCEPair generates a valid S256 challenge and verifier pair for testing.
// Returns (challenge, verifier).
func GeneratePKCEPair() (challenge, verifier string) {
	verifier = oauth2.GenerateVerifier()
	return oauth2.S256ChallengeFromVerifier(verifier), verifier
}

// TestGrant returns a grant for the fixture client valid for ten minutes from now
func TestGrant(now time.Time) storage.Grant {
	return storage.Grant{
		ClientID:    TestClientID,
		OwnerID:     TestOwnerID,
		RedirectURI: TestRedirectURI,
		Scope:       storage.MustParseScope(TestScope),
		Until:       now.Add(10 * time.Minute),
	}
}

// TestPublicClient returns the fixture client as a public client
func TestPublicClient() *storage.Client {
	return storage.NewPublicClient(TestClientID, TestRedirectURI, storage.MustParseScope(TestScope))
}

// TestConfidentialClient returns a confidential client with TestClientSecret
func TestConfidentialClient(t *testing.T, id string) *storage.Client {
	t.Helper()
	client, err := storage.NewConfidentialClient(id, TestRedirectURI, storage.MustParseScope(TestScope), []byte(TestClientSecret))
	if err != nil {
		t.Fatalf("NewConfidentialClient() error = %v", err)
	}
	return client
}
