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
	// tokenIDLogLength is the number of characters to include when logging codes and tokens
	tokenIDLogLength = 8
)

// AuthMap is an in-memory Authorizer keeping pending codes in a map.
// Codes are single use: Extract removes the entry it returns.
type AuthMap struct {
	mu    sync.Mutex
	codes map[string]storage.Grant

	generator storage.Generator
	now       func() time.Time
	grace     time.Duration

	codesCountAtomic atomic.Int64

	cleanup cleanupLoop
	logger  *slog.Logger
}

var _ storage.Authorizer = (*AuthMap)(nil)

// NewAuthMap creates an authorizer minting codes with gen.
// A nil gen selects storage.RandomGenerator.
func NewAuthMap(gen storage.Generator) *AuthMap {
	if gen == nil {
		gen = storage.RandomGenerator{}
	}
	return &AuthMap{
		codes:     make(map[string]storage.Grant),
		generator: gen,
		now:       time.Now,
		grace:     security.DefaultClockSkewGracePeriod,
		logger:    slog.Default(),
	}
}

// SetLogger sets a custom logger
func (m *AuthMap) SetLogger(logger *slog.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}

// SetClock replaces the time source used for expiry checks
func (m *AuthMap) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetClockSkewGracePeriod sets how long past Until a code stays extractable.
// Zero makes expiry strict. Negative values are treated as zero.
func (m *AuthMap) SetClockSkewGracePeriod(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grace = max(d, 0)
}

// SetInstrumentation registers the oauth.storage.codes gauge
func (m *AuthMap) SetInstrumentation(inst *instrumentation.Instrumentation) {
	if inst == nil {
		return
	}
	err := inst.RegisterStorageSizeCallbacks(func() int64 {
		return m.codesCountAtomic.Load()
	}, nil, nil)
	if err != nil {
		m.logger.Warn("Failed to register storage size callbacks", "error", err)
	}
}

// StartCleanup purges expired codes every interval until Stop is called
func (m *AuthMap) StartCleanup(interval time.Duration) {
	m.cleanup.start(interval, func() { m.PurgeExpired() })
}

// Stop stops the cleanup goroutine, if any
func (m *AuthMap) Stop() {
	m.cleanup.stop()
}

// Authorize stores grant under a fresh code
func (m *AuthMap) Authorize(ctx context.Context, grant storage.Grant) (string, error) {
	code, err := m.generator.Generate(grant)
	if err != nil {
		return "", fmt.Errorf("failed to generate authorization code: %w", err)
	}
	if code == "" {
		return "", fmt.Errorf("generator returned an empty authorization code")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.codes[code]; exists {
		return "", fmt.Errorf("authorization code: %w", storage.ErrTokenCollision)
	}

	m.codes[code] = grant.Clone()
	m.codesCountAtomic.Add(1)

	m.logger.Debug("Saved authorization code",
		"code_prefix", util.SafeTruncate(code, tokenIDLogLength),
		"client_id", grant.ClientID)
	return code, nil
}

// Extract removes and returns the grant stored under code.
// Returns nil if the code is unknown, already used or expired.
func (m *AuthMap) Extract(ctx context.Context, code string) (*storage.Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	grant, ok := m.codes[code]
	if !ok {
		return nil, nil
	}

	// Delete before the expiry check so an expired code is consumed as well.
	delete(m.codes, code)
	m.codesCountAtomic.Add(-1)

	if security.IsExpiredWithGracePeriod(grant.Until, m.now(), m.grace) {
		m.logger.Debug("Authorization code expired",
			"code_prefix", util.SafeTruncate(code, tokenIDLogLength),
			"client_id", grant.ClientID)
		return nil, nil
	}

	return &grant, nil
}

// PurgeExpired removes expired codes and returns how many were removed
func (m *AuthMap) PurgeExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for code, grant := range m.codes {
		if security.IsExpiredWithGracePeriod(grant.Until, now, m.grace) {
			delete(m.codes, code)
			removed++
		}
	}
	if removed > 0 {
		m.codesCountAtomic.Add(int64(-removed))
		m.logger.Debug("Purged expired authorization codes", "removed", removed)
	}
	return removed
}

// Len returns the number of pending codes
func (m *AuthMap) Len() int {
	return int(m.codesCountAtomic.Load())
}
