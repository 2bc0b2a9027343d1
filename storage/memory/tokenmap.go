package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giantswarm/oauth-engine/instrumentation"
	"github.com/giantswarm/oauth-engine/internal/util"
	"github.com/giantswarm/oauth-engine/security"
	"github.com/giantswarm/oauth-engine/storage"
)

const (
	// DefaultAccessTokenTTL is the default access token lifetime in seconds (1 hour)
	DefaultAccessTokenTTL = 3600

	// DefaultRefreshTokenTTL is the default refresh token lifetime in seconds (90 days)
	DefaultRefreshTokenTTL = 90 * 24 * 3600
)

// TokenMapConfig configures a TokenMap
type TokenMapConfig struct {
	// AccessTokenTTL is how long access tokens are valid, in seconds (default: 3600)
	AccessTokenTTL int64

	// RefreshTokenTTL is how long refresh tokens are valid, in seconds (default: 90 days)
	RefreshTokenTTL int64

	// DisableRefreshTokens stops the map from minting refresh tokens (default: false)
	DisableRefreshTokens bool
}

func (c *TokenMapConfig) applyDefaults() {
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if c.RefreshTokenTTL <= 0 {
		c.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
}

// tokenEntry is shared by the access and refresh indexes so rotation can drop both
type tokenEntry struct {
	grant        storage.Grant
	access       string
	refresh      string
	accessUntil  time.Time
	refreshUntil time.Time
}

// TokenMap is an in-memory Issuer mapping opaque tokens back to their grant.
type TokenMap struct {
	mu      sync.RWMutex
	access  map[string]*tokenEntry
	refresh map[string]*tokenEntry

	config    TokenMapConfig
	generator storage.Generator
	now       func() time.Time

	tokensCountAtomic atomic.Int64

	cleanup cleanupLoop
	logger  *slog.Logger
}

var _ storage.Issuer = (*TokenMap)(nil)

// NewTokenMap creates an issuer minting tokens with gen.
// A nil gen selects storage.RandomGenerator and a nil config the defaults.
func NewTokenMap(gen storage.Generator, config *TokenMapConfig) *TokenMap {
	if gen == nil {
		gen = storage.RandomGenerator{}
	}
	var cfg TokenMapConfig
	if config != nil {
		cfg = *config
	}
	cfg.applyDefaults()

	return &TokenMap{
		access:    make(map[string]*tokenEntry),
		refresh:   make(map[string]*tokenEntry),
		config:    cfg,
		generator: gen,
		now:       time.Now,
		logger:    slog.Default(),
	}
}

// SetLogger sets a custom logger
func (m *TokenMap) SetLogger(logger *slog.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}

// SetClock replaces the time source used for expiry
func (m *TokenMap) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetInstrumentation registers the oauth.storage.tokens gauge
func (m *TokenMap) SetInstrumentation(inst *instrumentation.Instrumentation) {
	if inst == nil {
		return
	}
	err := inst.RegisterStorageSizeCallbacks(nil, func() int64 {
		return m.tokensCountAtomic.Load()
	}, nil)
	if err != nil {
		m.logger.Warn("Failed to register storage size callbacks", "error", err)
	}
}

// StartCleanup purges expired tokens every interval until Stop is called
func (m *TokenMap) StartCleanup(interval time.Duration) {
	m.cleanup.start(interval, func() { m.PurgeExpired() })
}

// Stop stops the cleanup goroutine, if any
func (m *TokenMap) Stop() {
	m.cleanup.stop()
}

// Issue mints a token pair for grant
func (m *TokenMap) Issue(ctx context.Context, grant storage.Grant) (storage.IssuedToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.issueLocked(grant)
}

// issueLocked must be called with mu held
func (m *TokenMap) issueLocked(grant storage.Grant) (storage.IssuedToken, error) {
	now := m.now()

	access, err := m.generator.Generate(grant)
	if err != nil {
		return storage.IssuedToken{}, fmt.Errorf("failed to generate access token: %w", err)
	}
	if access == "" {
		return storage.IssuedToken{}, fmt.Errorf("generator returned an empty access token")
	}
	if _, exists := m.access[access]; exists {
		return storage.IssuedToken{}, fmt.Errorf("access token: %w", storage.ErrTokenCollision)
	}

	entry := &tokenEntry{
		access:      access,
		accessUntil: now.Add(time.Duration(m.config.AccessTokenTTL) * time.Second),
	}
	entry.grant = grant.Clone()
	entry.grant.Until = entry.accessUntil

	if !m.config.DisableRefreshTokens {
		refresh, err := m.generator.Generate(grant)
		if err != nil {
			return storage.IssuedToken{}, fmt.Errorf("failed to generate refresh token: %w", err)
		}
		if refresh == "" || refresh == access {
			return storage.IssuedToken{}, fmt.Errorf("refresh token: %w", storage.ErrTokenCollision)
		}
		if _, exists := m.refresh[refresh]; exists {
			return storage.IssuedToken{}, fmt.Errorf("refresh token: %w", storage.ErrTokenCollision)
		}
		entry.refresh = refresh
		entry.refreshUntil = now.Add(time.Duration(m.config.RefreshTokenTTL) * time.Second)
		m.refresh[refresh] = entry
	}

	m.access[access] = entry
	m.tokensCountAtomic.Add(1)

	m.logger.Debug("Issued token",
		"token_prefix", util.SafeTruncate(access, tokenIDLogLength),
		"client_id", grant.ClientID,
		"refreshable", entry.refresh != "")

	return storage.IssuedToken{
		Token:     access,
		Refresh:   entry.refresh,
		Until:     entry.accessUntil,
		TokenType: storage.TokenTypeBearer,
	}, nil
}

// Refresh rotates refresh: the pair it belongs to is revoked and a new pair
// is issued for grant.
func (m *TokenMap) Refresh(ctx context.Context, refresh string, grant storage.Grant) (storage.IssuedToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.refresh[refresh]
	if !ok || security.IsExpired(entry.refreshUntil, m.now()) {
		return storage.IssuedToken{}, storage.ErrUnknownRefresh
	}

	issued, err := m.issueLocked(grant)
	if err != nil {
		return storage.IssuedToken{}, err
	}
	m.removeLocked(entry)

	m.logger.Debug("Rotated refresh token",
		"refresh_prefix", util.SafeTruncate(refresh, tokenIDLogLength),
		"client_id", grant.ClientID)

	return issued, nil
}

// RecoverToken returns the grant behind an access token, or nil
func (m *TokenMap) RecoverToken(ctx context.Context, token string) (*storage.Grant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.access[token]
	if !ok || security.IsExpired(entry.accessUntil, m.now()) {
		return nil, nil
	}
	grant := entry.grant.Clone()
	return &grant, nil
}

// RecoverRefresh returns the grant behind a refresh token, or nil.
// The returned grant's Until is the refresh token expiry.
func (m *TokenMap) RecoverRefresh(ctx context.Context, token string) (*storage.Grant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.refresh[token]
	if !ok || security.IsExpired(entry.refreshUntil, m.now()) {
		return nil, nil
	}
	grant := entry.grant.Clone()
	grant.Until = entry.refreshUntil
	return &grant, nil
}

// PurgeExpired removes pairs whose access and refresh tokens have both expired
func (m *TokenMap) PurgeExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for _, entry := range m.access {
		if !security.IsExpired(entry.accessUntil, now) {
			continue
		}
		if entry.refresh != "" && !security.IsExpired(entry.refreshUntil, now) {
			continue
		}
		m.removeLocked(entry)
		removed++
	}
	if removed > 0 {
		m.logger.Debug("Purged expired tokens", "removed", removed)
	}
	return removed
}

// removeLocked must be called with mu held
func (m *TokenMap) removeLocked(entry *tokenEntry) {
	if _, ok := m.access[entry.access]; ok {
		delete(m.access, entry.access)
		m.tokensCountAtomic.Add(-1)
	}
	if entry.refresh != "" {
		delete(m.refresh, entry.refresh)
	}
}

// Len returns the number of live access tokens
func (m *TokenMap) Len() int {
	return int(m.tokensCountAtomic.Load())
}
