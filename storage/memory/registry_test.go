package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/oauth-engine/internal/testutil"
	"github.com/giantswarm/oauth-engine/storage"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	r := NewRegistry()
	public := testutil.TestPublicClient()
	public.AdditionalRedirectURIs = []string{"http://localhost:8080/callback"}
	require.NoError(t, r.Register(public))
	require.NoError(t, r.Register(testutil.TestConfidentialClient(t, "confidential")))
	return r
}

func TestRegistry_Register(t *testing.T) {
	r := newTestRegistry(t)

	assert.Equal(t, 2, r.Len())
	assert.Error(t, r.Register(testutil.TestPublicClient()), "duplicate id must be rejected")
	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(&storage.Client{ID: "no-redirect"}))

	got, ok := r.Get(testutil.TestClientID)
	require.True(t, ok)
	got.RedirectURI = "https://mutated.example"
	again, _ := r.Get(testutil.TestClientID)
	assert.Equal(t, testutil.TestRedirectURI, again.RedirectURI, "Get must return a copy")
}

func TestRegistry_Validate(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name         string
		clientID     string
		redirectURI  string
		scope        string
		wantErr      error
		wantRedirect string
		wantScope    string
	}{
		{
			name:         "defaults bound",
			clientID:     testutil.TestClientID,
			wantRedirect: testutil.TestRedirectURI,
			wantScope:    "default-scope read write",
		},
		{
			name:         "additional redirect",
			clientID:     testutil.TestClientID,
			redirectURI:  "http://localhost:8080/callback",
			scope:        "read",
			wantRedirect: "http://localhost:8080/callback",
			wantScope:    "read",
		},
		{
			name:     "unknown client",
			clientID: "nope",
			wantErr:  storage.ErrUnknownClient,
		},
		{
			name:        "trailing slash is a mismatch",
			clientID:    testutil.TestClientID,
			redirectURI: testutil.TestRedirectURI + "/",
			wantErr:     storage.ErrRedirectMismatch,
		},
		{
			name:     "scope exceeded",
			clientID: testutil.TestClientID,
			scope:    "read admin",
			wantErr:  storage.ErrScopeExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bound, err := r.Validate(ctx, tt.clientID, tt.redirectURI, storage.MustParseScope(tt.scope))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.clientID, bound.ClientID)
			assert.Equal(t, tt.wantRedirect, bound.RedirectURI)
			assert.Equal(t, tt.wantScope, bound.Scope.String())
		})
	}
}

func TestRegistry_Check(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	assert.NoError(t, r.Check(ctx, testutil.TestClientID, nil))
	assert.ErrorIs(t, r.Check(ctx, testutil.TestClientID, []byte("secret")), storage.ErrUnauthorizedClient)
	assert.NoError(t, r.Check(ctx, "confidential", []byte(testutil.TestClientSecret)))
	assert.ErrorIs(t, r.Check(ctx, "confidential", []byte("wrong")), storage.ErrUnauthorizedClient)
	assert.ErrorIs(t, r.Check(ctx, "unknown", []byte("whatever")), storage.ErrUnknownClient)
}
