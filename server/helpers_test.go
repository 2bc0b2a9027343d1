package server

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	oauth "github.com/giantswarm/oauth-engine"
	"github.com/giantswarm/oauth-engine/internal/testutil"
	"github.com/giantswarm/oauth-engine/storage"
	"github.com/giantswarm/oauth-engine/storage/memory"
)

type testEnv struct {
	registry *memory.Registry
	codes    *memory.AuthMap
	tokens   *memory.TokenMap
	clock    *testutil.MockTime
	endpoint *Endpoint
}

// setupTestEnv returns an endpoint over in-memory primitives with the
// public fixture client registered and the given addons installed.
func setupTestEnv(t *testing.T, addons ...Addon) *testEnv {
	t.Helper()

	clock := testutil.NewMockTime(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	registry := memory.NewRegistry()
	if err := registry.Register(testutil.TestPublicClient()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	codes := memory.NewAuthMap(testutil.NewSequenceGenerator("code"))
	codes.SetClock(clock.Now)
	tokens := memory.NewTokenMap(testutil.NewSequenceGenerator("token"), nil)
	tokens.SetClock(clock.Now)

	list, err := NewAddonList(addons...)
	if err != nil {
		t.Fatalf("NewAddonList() error = %v", err)
	}

	return &testEnv{
		registry: registry,
		codes:    codes,
		tokens:   tokens,
		clock:    clock,
		endpoint: &Endpoint{
			Registrar:  registry,
			Authorizer: codes,
			Issuer:     tokens,
			Solicitor:  AutoApprove(testutil.TestOwnerID),
			Addons:     list,
			Now:        clock.Now,
		},
	}
}

func authorizationQuery(extra ...string) url.Values {
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {testutil.TestClientID},
		"redirect_uri":  {testutil.TestRedirectURI},
		"state":         {"xyz"},
	}
	for i := 0; i+1 < len(extra); i += 2 {
		q.Set(extra[i], extra[i+1])
	}
	return q
}

func tokenBody(code string, extra ...string) url.Values {
	b := url.Values{
		"grant_type":   {GrantTypeAuthorizationCode},
		"client_id":    {testutil.TestClientID},
		"code":         {code},
		"redirect_uri": {testutil.TestRedirectURI},
	}
	for i := 0; i+1 < len(extra); i += 2 {
		b.Set(extra[i], extra[i+1])
	}
	return b
}

// mustAuthorize runs the authorization flow and returns the issued code
func mustAuthorize(t *testing.T, ep *Endpoint, query url.Values) string {
	t.Helper()

	flow, err := PrepareAuthorization(ep)
	if err != nil {
		t.Fatalf("PrepareAuthorization() error = %v", err)
	}
	resp, err := flow.Execute(context.Background(), &Request{Query: query})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Status != StatusRedirect || resp.Location == nil {
		t.Fatalf("Execute() status = %d, want redirect; body = %v", resp.Status, resp.Body)
	}
	if code := resp.ErrorCode(); code != "" {
		t.Fatalf("Execute() redirected with error %q", code)
	}
	code := resp.Location.Query().Get("code")
	if code == "" {
		t.Fatal("Execute() redirect carries no code")
	}
	return code
}

// exchange runs the access token flow
func exchange(t *testing.T, ep *Endpoint, body url.Values, authorization string) *Response {
	t.Helper()

	flow, err := PrepareAccessToken(ep)
	if err != nil {
		t.Fatalf("PrepareAccessToken() error = %v", err)
	}
	resp, err := flow.Execute(context.Background(), &Request{Body: body, Authorization: authorization})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	return resp
}

func decodeToken(t *testing.T, resp *Response) oauth.TokenResponse {
	t.Helper()

	if resp.Status != StatusOK {
		t.Fatalf("status = %d, want %d; body = %v", resp.Status, StatusOK, resp.Body)
	}
	if resp.Body == nil || resp.Body.Kind != BodyJSON {
		t.Fatalf("body = %v, want JSON", resp.Body)
	}
	var tr oauth.TokenResponse
	if err := json.Unmarshal([]byte(resp.Body.Content), &tr); err != nil {
		t.Fatalf("unmarshal token response: %v", err)
	}
	return tr
}

func assertError(t *testing.T, resp *Response, status Status, code string) {
	t.Helper()

	if resp.Status != status {
		t.Errorf("status = %d, want %d", resp.Status, status)
	}
	if got := resp.ErrorCode(); got != code {
		t.Errorf("error = %q, want %q", got, code)
	}
}

// failingAuthorizer fails every operation, like a stopped bridge
type failingAuthorizer struct{ err error }

func (f failingAuthorizer) Authorize(context.Context, storage.Grant) (string, error) {
	return "", f.err
}

func (f failingAuthorizer) Extract(context.Context, string) (*storage.Grant, error) {
	return nil, f.err
}
