package actor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/giantswarm/oauth-engine/instrumentation"
	"github.com/giantswarm/oauth-engine/internal/testutil"
	"github.com/giantswarm/oauth-engine/storage"
	"github.com/giantswarm/oauth-engine/storage/memory"
)

// counter is deliberately unsynchronized; the actor is its only guard.
type counter struct {
	n     int
	order []int
}

func TestAsk_SerializesState(t *testing.T) {
	a := Spawn(&counter{}, WithName("counter"), WithCapacity(8))
	defer a.Stop()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Ask(ctx, a, "inc", func(_ context.Context, c *counter) (struct{}, error) {
				c.n++
				return struct{}{}, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := Ask(ctx, a, "get", func(_ context.Context, c *counter) (int, error) {
		return c.n, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 100, n)
}

func TestAsk_FIFO(t *testing.T) {
	a := Spawn(&counter{})
	defer a.Stop()

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		_, err := Ask(ctx, a, "append", func(_ context.Context, c *counter) (struct{}, error) {
			c.order = append(c.order, i)
			return struct{}{}, nil
		})
		require.NoError(t, err)
	}

	order, err := Ask(ctx, a, "order", func(_ context.Context, c *counter) ([]int, error) {
		return append([]int(nil), c.order...), nil
	})
	require.NoError(t, err)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestAsk_Stopped(t *testing.T) {
	a := Spawn(&counter{})
	a.Stop()
	a.Stop()

	_, err := Ask(context.Background(), a, "inc", func(_ context.Context, c *counter) (int, error) {
		c.n++
		return c.n, nil
	})
	assert.ErrorIs(t, err, ErrMailboxClosed)
}

func TestAsk_HandlerPanic(t *testing.T) {
	a := Spawn(&counter{})
	defer a.Stop()
	ctx := context.Background()

	_, err := Ask(ctx, a, "boom", func(context.Context, *counter) (int, error) {
		panic("boom")
	})
	assert.ErrorIs(t, err, ErrHandlerPanic)

	n, err := Ask(ctx, a, "get", func(_ context.Context, c *counter) (int, error) {
		return c.n, nil
	})
	assert.NoError(t, err, "actor must survive a panicking handler")
	assert.Equal(t, 0, n)
}

func TestAsk_HandlerError(t *testing.T) {
	a := Spawn(&counter{})
	defer a.Stop()

	wantErr := errors.New("nope")
	_, err := Ask(context.Background(), a, "fail", func(context.Context, *counter) (int, error) {
		return 0, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestAsk_ContextCancelledWhileBusy(t *testing.T) {
	a := Spawn(&counter{})
	defer a.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = Ask(context.Background(), a, "block", func(context.Context, *counter) (struct{}, error) {
			close(started)
			<-release
			return struct{}{}, nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Ask(ctx, a, "late", func(context.Context, *counter) (struct{}, error) {
		return struct{}{}, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}

func TestAsk_StopWhileQueued(t *testing.T) {
	a := Spawn(&counter{}, WithCapacity(4))

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = Ask(context.Background(), a, "block", func(context.Context, *counter) (struct{}, error) {
			close(started)
			<-release
			return struct{}{}, nil
		})
	}()
	<-started

	queued := make(chan error, 1)
	go func() {
		_, err := Ask(context.Background(), a, "queued", func(context.Context, *counter) (struct{}, error) {
			return struct{}{}, nil
		})
		queued <- err
	}()

	// Give the second message time to land in the buffer.
	time.Sleep(10 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		a.Stop()
		close(stopped)
	}()
	close(release)
	<-stopped

	select {
	case err := <-queued:
		// Either processed before the loop saw quit, or answered with closed.
		if err != nil {
			assert.ErrorIs(t, err, ErrMailboxClosed)
		}
	case <-time.After(time.Second):
		t.Fatal("queued Ask did not return after Stop")
	}
}

func TestIssuer_ConcurrentIssueRecover(t *testing.T) {
	issuer := NewIssuer(memory.NewTokenMap(nil, nil))
	defer issuer.Stop()
	ctx := context.Background()

	const n = 50
	tokens := make([]storage.IssuedToken, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			grant := testutil.TestGrant(time.Now())
			grant.OwnerID = fmt.Sprintf("owner-%d", i)
			tok, err := issuer.Issue(ctx, grant)
			assert.NoError(t, err)
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	for i, tok := range tokens {
		grant, err := issuer.RecoverToken(ctx, tok.Token)
		require.NoError(t, err)
		require.NotNil(t, grant)
		assert.Equal(t, fmt.Sprintf("owner-%d", i), grant.OwnerID)

		byRefresh, err := issuer.RecoverRefresh(ctx, tok.Refresh)
		require.NoError(t, err)
		require.NotNil(t, byRefresh)
		assert.Equal(t, fmt.Sprintf("owner-%d", i), byRefresh.OwnerID)
	}

	unknown, err := issuer.RecoverToken(ctx, "never-issued")
	assert.NoError(t, err, "unknown token is not an error")
	assert.Nil(t, unknown)
}

func TestIssuer_Refresh(t *testing.T) {
	issuer := NewIssuer(memory.NewTokenMap(testutil.NewSequenceGenerator("tok"), nil))
	defer issuer.Stop()
	ctx := context.Background()
	grant := testutil.TestGrant(time.Now())

	first, err := issuer.Issue(ctx, grant)
	require.NoError(t, err)
	second, err := issuer.Refresh(ctx, first.Refresh, grant)
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)

	_, err = issuer.Refresh(ctx, first.Refresh, grant)
	assert.ErrorIs(t, err, storage.ErrUnknownRefresh)
}

// mapAuthorizer is an unsynchronized Authorizer used to show that the
// bridge alone enforces single use.
type mapAuthorizer struct {
	codes map[string]storage.Grant
}

func (m *mapAuthorizer) Authorize(_ context.Context, g storage.Grant) (string, error) {
	code := fmt.Sprintf("code-%d", len(m.codes)+1)
	m.codes[code] = g
	return code, nil
}

func (m *mapAuthorizer) Extract(_ context.Context, code string) (*storage.Grant, error) {
	g, ok := m.codes[code]
	if !ok {
		return nil, nil
	}
	// Yield so racing callers would interleave without the mailbox.
	time.Sleep(time.Microsecond)
	delete(m.codes, code)
	return &g, nil
}

func TestAuthorizer_ConcurrentExtract(t *testing.T) {
	authorizer := NewAuthorizer(&mapAuthorizer{codes: make(map[string]storage.Grant)})
	defer authorizer.Stop()
	ctx := context.Background()

	code, err := authorizer.Authorize(ctx, testutil.TestGrant(time.Now()))
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := authorizer.Extract(ctx, code)
			assert.NoError(t, err)
			if g != nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestRegistrar_Bridged(t *testing.T) {
	registry := memory.NewRegistry()
	require.NoError(t, registry.Register(testutil.TestPublicClient()))
	registrar := NewRegistrar(registry)
	ctx := context.Background()

	bound, err := registrar.Validate(ctx, testutil.TestClientID, "", storage.Scope{})
	require.NoError(t, err)
	assert.Equal(t, testutil.TestRedirectURI, bound.RedirectURI)

	_, err = registrar.Validate(ctx, "unknown", "", storage.Scope{})
	assert.ErrorIs(t, err, storage.ErrUnknownClient)

	assert.NoError(t, registrar.Check(ctx, testutil.TestClientID, nil))

	registrar.Stop()
	_, err = registrar.Validate(ctx, testutil.TestClientID, "", storage.Scope{})
	assert.ErrorIs(t, err, ErrMailboxClosed)
}

func TestActor_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	inst, err := instrumentation.New(instrumentation.Config{
		Enabled:       true,
		MeterProvider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	})
	require.NoError(t, err)

	issuer := NewIssuer(memory.NewTokenMap(nil, nil), WithInstrumentation(inst))
	_, err = issuer.RecoverToken(context.Background(), "missing")
	require.NoError(t, err)
	issuer.Stop()
	_, err = issuer.RecoverToken(context.Background(), "missing")
	require.ErrorIs(t, err, ErrMailboxClosed)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	outcomes := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "oauth.actor.messages" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				actorName, _ := dp.Attributes.Value("actor")
				assert.Equal(t, "issuer", actorName.AsString())
				outcome, _ := dp.Attributes.Value("outcome")
				outcomes[outcome.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{"ok": 1, "closed": 1}, outcomes)
}

func TestMessages_Names(t *testing.T) {
	tests := []struct {
		msg  interface{ Name() string }
		want string
	}{
		{Validate{}, "Validate"},
		{Check{}, "Check"},
		{Authorize{}, "Authorize"},
		{Extract{}, "Extract"},
		{Issue{}, "Issue"},
		{Refresh{}, "Refresh"},
		{RecoverToken{}, "RecoverToken"},
		{RecoverRefresh{}, "RecoverRefresh"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.Name())
		})
	}
}

func TestMessages_HandleForwards(t *testing.T) {
	ctx := context.Background()
	codes := memory.NewAuthMap(testutil.NewSequenceGenerator("code"))

	code, err := Authorize{Grant: testutil.TestGrant(time.Now())}.Handle(ctx, codes)
	require.NoError(t, err)
	assert.Equal(t, "code-1", code)

	grant, err := Extract{Code: code}.Handle(ctx, codes)
	require.NoError(t, err)
	require.NotNil(t, grant)
	assert.Equal(t, testutil.TestClientID, grant.ClientID)
}
