package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/oauth-engine/instrumentation"
	"github.com/giantswarm/oauth-engine/storage"
)

// dummyBcryptHash is compared against for unknown clients so that Check takes
// the same time whether or not the client exists.
var dummyBcryptHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// Registry is an in-memory Registrar holding a fixed set of clients.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*storage.Client

	clientsCountAtomic atomic.Int64

	logger *slog.Logger
}

var _ storage.Registrar = (*Registry)(nil)

// NewRegistry creates an empty client registry
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*storage.Client),
		logger:  slog.Default(),
	}
}

// SetLogger sets a custom logger
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// SetInstrumentation registers the oauth.storage.clients gauge
func (r *Registry) SetInstrumentation(inst *instrumentation.Instrumentation) {
	if inst == nil {
		return
	}
	err := inst.RegisterStorageSizeCallbacks(nil, nil, func() int64 {
		return r.clientsCountAtomic.Load()
	})
	if err != nil {
		r.logger.Warn("Failed to register storage size callbacks", "error", err)
	}
}

// Register adds a client. Registering an id twice is an error.
func (r *Registry) Register(client *storage.Client) error {
	if client == nil || client.ID == "" {
		return fmt.Errorf("invalid client")
	}
	if client.RedirectURI == "" {
		return fmt.Errorf("client %s: redirect URI is required", client.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[client.ID]; exists {
		return fmt.Errorf("client %s already registered", client.ID)
	}

	c := *client
	c.AdditionalRedirectURIs = append([]string(nil), client.AdditionalRedirectURIs...)
	r.clients[client.ID] = &c
	r.clientsCountAtomic.Add(1)

	r.logger.Debug("Registered client",
		"client_id", client.ID,
		"client_type", client.Kind.String())
	return nil
}

// Get returns a copy of a registered client
func (r *Registry) Get(clientID string) (*storage.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[clientID]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

// Len returns the number of registered clients
func (r *Registry) Len() int {
	return int(r.clientsCountAtomic.Load())
}

// Validate binds a redirect URI and scope to a registered client.
// An empty redirectURI binds the primary registered URI and an empty scope
// binds the client's default scope.
func (r *Registry) Validate(ctx context.Context, clientID, redirectURI string, scope storage.Scope) (storage.BoundClient, error) {
	r.mu.RLock()
	client, ok := r.clients[clientID]
	r.mu.RUnlock()

	if !ok {
		return storage.BoundClient{}, fmt.Errorf("%w: %s", storage.ErrUnknownClient, clientID)
	}

	if redirectURI == "" {
		redirectURI = client.RedirectURI
	} else if !client.RedirectAllowed(redirectURI) {
		return storage.BoundClient{}, fmt.Errorf("%w: client %s", storage.ErrRedirectMismatch, clientID)
	}

	if scope.Empty() {
		scope = client.DefaultScope
	} else if !scope.SubsetOf(client.DefaultScope) {
		return storage.BoundClient{}, fmt.Errorf("%w: requested %q, registered %q",
			storage.ErrScopeExceeded, scope.String(), client.DefaultScope.String())
	}

	return storage.BoundClient{
		ClientID:    clientID,
		RedirectURI: redirectURI,
		Scope:       scope,
		Kind:        client.Kind,
	}, nil
}

// Check verifies the credentials presented by a client
func (r *Registry) Check(ctx context.Context, clientID string, secret []byte) error {
	r.mu.RLock()
	client, ok := r.clients[clientID]
	r.mu.RUnlock()

	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyBcryptHash, secret)
		return fmt.Errorf("%w: %s", storage.ErrUnknownClient, clientID)
	}

	return client.CheckSecret(secret)
}
