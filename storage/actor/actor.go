package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/giantswarm/oauth-engine/instrumentation"
)

var (
	// ErrMailboxClosed is returned when a message is sent to a stopped actor
	ErrMailboxClosed = errors.New("actor mailbox closed")

	// ErrHandlerPanic is returned when a message handler panicked.
	// The actor keeps processing later messages.
	ErrHandlerPanic = errors.New("actor message handler panicked")
)

// Outcome labels for the oauth.actor.messages counter
const (
	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomeClosed   = "closed"
	outcomeCanceled = "canceled"
	outcomePanic    = "panic"
)

// Addr is the address of a running actor owning a value of type S.
// The value is only ever touched by the actor's goroutine, one message at a
// time, in the order messages were received.
type Addr[S any] struct {
	name    string
	state   S
	mailbox chan func(S)

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

type options struct {
	name     string
	capacity int
	logger   *slog.Logger
	inst     *instrumentation.Instrumentation
}

// Option configures Spawn
type Option func(*options)

// WithName sets the actor name used in logs and metrics
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithCapacity sets the mailbox buffer size (default: unbuffered)
func WithCapacity(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.capacity = n
		}
	}
}

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithInstrumentation enables message counters and duration histograms
func WithInstrumentation(inst *instrumentation.Instrumentation) Option {
	return func(o *options) { o.inst = inst }
}

// Spawn starts an actor owning state and returns its address
func Spawn[S any](state S, opts ...Option) *Addr[S] {
	o := options{name: "actor"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	a := &Addr[S]{
		name:    o.name,
		state:   state,
		mailbox: make(chan func(S), o.capacity),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		logger:  o.logger.With("actor", o.name),
		metrics: o.inst.Metrics(),
	}

	go a.run()

	return a
}

func (a *Addr[S]) run() {
	defer close(a.done)

	for {
		select {
		case <-a.quit:
			return
		case fn := <-a.mailbox:
			fn(a.state)
		}
	}
}

// Name returns the actor name
func (a *Addr[S]) Name() string {
	return a.name
}

// Stop stops the actor and waits for its goroutine to exit.
// Messages still queued are answered with ErrMailboxClosed. Safe to call
// more than once.
func (a *Addr[S]) Stop() {
	a.stopOnce.Do(func() {
		close(a.quit)
	})
	<-a.done
	a.logger.Debug("Actor stopped")
}

type result[R any] struct {
	val R
	err error
}

// Ask sends handle to the actor and suspends until it has run against the
// actor's state.
//
// The caller's ctx bounds only the wait for a mailbox slot. Once a message
// is queued it is processed while the actor runs, so a consumed
// authorization code is never lost to a cancelled caller; handle receives
// ctx and may observe the cancellation itself. On a buffered mailbox
// (WithCapacity) a Stop discards messages that are still queued and their
// callers get ErrMailboxClosed without handle having run.
func Ask[S, R any](ctx context.Context, a *Addr[S], name string, handle func(context.Context, S) (R, error)) (R, error) {
	var zero R
	start := time.Now()

	select {
	case <-a.quit:
		a.record(ctx, name, outcomeClosed, start)
		return zero, fmt.Errorf("%s %s: %w", a.name, name, ErrMailboxClosed)
	default:
	}

	reply := make(chan result[R], 1)
	envelope := func(state S) {
		var res result[R]
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("Actor message handler panicked",
					"message", name,
					"panic", r,
					"stack", string(debug.Stack()))
				res = result[R]{err: fmt.Errorf("%s %s: %w: %v", a.name, name, ErrHandlerPanic, r)}
			}
			reply <- res
		}()
		res.val, res.err = handle(ctx, state)
	}

	select {
	case a.mailbox <- envelope:
	case <-a.quit:
		a.record(ctx, name, outcomeClosed, start)
		return zero, fmt.Errorf("%s %s: %w", a.name, name, ErrMailboxClosed)
	case <-ctx.Done():
		a.record(ctx, name, outcomeCanceled, start)
		return zero, ctx.Err()
	}

	var res result[R]
	select {
	case res = <-reply:
	case <-a.done:
		// The loop may have answered just before exiting.
		select {
		case res = <-reply:
		default:
			a.record(ctx, name, outcomeClosed, start)
			return zero, fmt.Errorf("%s %s: %w", a.name, name, ErrMailboxClosed)
		}
	}

	switch {
	case errors.Is(res.err, ErrHandlerPanic):
		a.record(ctx, name, outcomePanic, start)
	case res.err != nil:
		a.record(ctx, name, outcomeError, start)
	default:
		a.record(ctx, name, outcomeOK, start)
	}
	return res.val, res.err
}

// Message is a typed request handled by an actor owning an S
type Message[S, R any] interface {
	// Name labels the message in logs and metrics
	Name() string
	// Handle runs on the actor goroutine
	Handle(ctx context.Context, state S) (R, error)
}

// Send delivers msg to the actor and waits for its reply
func Send[S, R any](ctx context.Context, a *Addr[S], msg Message[S, R]) (R, error) {
	return Ask(ctx, a, msg.Name(), msg.Handle)
}

func (a *Addr[S]) record(ctx context.Context, message, outcome string, start time.Time) {
	a.metrics.RecordActorMessage(context.WithoutCancel(ctx), a.name, message, outcome,
		float64(time.Since(start).Microseconds())/1000.0)
}
