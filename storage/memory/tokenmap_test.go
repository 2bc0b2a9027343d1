package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/oauth-engine/internal/testutil"
	"github.com/giantswarm/oauth-engine/storage"
)

func newTestTokenMap(config *TokenMapConfig) (*TokenMap, *testutil.MockTime) {
	clock := testutil.NewMockTime(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	m := NewTokenMap(testutil.NewSequenceGenerator("tok"), config)
	m.SetClock(clock.Now)
	return m, clock
}

func TestTokenMap_Defaults(t *testing.T) {
	m := NewTokenMap(nil, nil)
	assert.Equal(t, int64(DefaultAccessTokenTTL), m.config.AccessTokenTTL)
	assert.Equal(t, int64(DefaultRefreshTokenTTL), m.config.RefreshTokenTTL)
	assert.False(t, m.config.DisableRefreshTokens)
}

func TestTokenMap_IssueRecover(t *testing.T) {
	m, clock := newTestTokenMap(nil)
	ctx := context.Background()
	grant := testutil.TestGrant(clock.Now())

	issued, err := m.Issue(ctx, grant)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", issued.Token)
	assert.Equal(t, "tok-2", issued.Refresh)
	assert.Equal(t, storage.TokenTypeBearer, issued.TokenType)
	assert.Equal(t, int64(3600), issued.ExpiresIn(clock.Now()))

	recovered, err := m.RecoverToken(ctx, issued.Token)
	require.NoError(t, err)
	require.NotNil(t, recovered)
	assert.Equal(t, grant.ClientID, recovered.ClientID)
	assert.Equal(t, issued.Until, recovered.Until)

	byRefresh, err := m.RecoverRefresh(ctx, issued.Refresh)
	require.NoError(t, err)
	require.NotNil(t, byRefresh)
	assert.Equal(t, grant.OwnerID, byRefresh.OwnerID)

	// Tokens do not resolve through the other index.
	none, err := m.RecoverToken(ctx, issued.Refresh)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestTokenMap_RecoverUnknown(t *testing.T) {
	m, _ := newTestTokenMap(nil)
	ctx := context.Background()

	grant, err := m.RecoverToken(ctx, "never-issued")
	assert.NoError(t, err)
	assert.Nil(t, grant)

	grant, err = m.RecoverRefresh(ctx, "never-issued")
	assert.NoError(t, err)
	assert.Nil(t, grant)
}

func TestTokenMap_Expiry(t *testing.T) {
	m, clock := newTestTokenMap(&TokenMapConfig{AccessTokenTTL: 60, RefreshTokenTTL: 120})
	ctx := context.Background()

	issued, err := m.Issue(ctx, testutil.TestGrant(clock.Now()))
	require.NoError(t, err)

	clock.Advance(90 * time.Second)

	access, err := m.RecoverToken(ctx, issued.Token)
	require.NoError(t, err)
	assert.Nil(t, access, "access token should have expired")

	refresh, err := m.RecoverRefresh(ctx, issued.Refresh)
	require.NoError(t, err)
	assert.NotNil(t, refresh, "refresh token should still be live")

	assert.Equal(t, 0, m.PurgeExpired(), "pair with live refresh token is kept")
	clock.Advance(time.Minute)
	assert.Equal(t, 1, m.PurgeExpired())
	assert.Equal(t, 0, m.Len())
}

func TestTokenMap_DisableRefresh(t *testing.T) {
	m, clock := newTestTokenMap(&TokenMapConfig{DisableRefreshTokens: true})

	issued, err := m.Issue(context.Background(), testutil.TestGrant(clock.Now()))
	require.NoError(t, err)
	assert.False(t, issued.Refreshable())
}

func TestTokenMap_RefreshRotates(t *testing.T) {
	m, clock := newTestTokenMap(nil)
	ctx := context.Background()
	grant := testutil.TestGrant(clock.Now())

	first, err := m.Issue(ctx, grant)
	require.NoError(t, err)

	second, err := m.Refresh(ctx, first.Refresh, grant)
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)
	assert.NotEqual(t, first.Refresh, second.Refresh)

	old, err := m.RecoverToken(ctx, first.Token)
	require.NoError(t, err)
	assert.Nil(t, old, "rotated access token must be revoked")

	oldRefresh, err := m.RecoverRefresh(ctx, first.Refresh)
	require.NoError(t, err)
	assert.Nil(t, oldRefresh, "rotated refresh token must be revoked")

	_, err = m.Refresh(ctx, first.Refresh, grant)
	assert.ErrorIs(t, err, storage.ErrUnknownRefresh)

	assert.Equal(t, 1, m.Len())
}

func TestTokenMap_Collision(t *testing.T) {
	m := NewTokenMap(testutil.FixedGenerator("same"), &TokenMapConfig{DisableRefreshTokens: true})
	ctx := context.Background()

	_, err := m.Issue(ctx, testutil.TestGrant(time.Now()))
	require.NoError(t, err)
	_, err = m.Issue(ctx, testutil.TestGrant(time.Now()))
	assert.ErrorIs(t, err, storage.ErrTokenCollision)

	// Access and refresh tokens would be equal.
	m = NewTokenMap(testutil.FixedGenerator("same"), nil)
	_, err = m.Issue(ctx, testutil.TestGrant(time.Now()))
	assert.ErrorIs(t, err, storage.ErrTokenCollision)
	assert.Equal(t, 0, m.Len())
}
