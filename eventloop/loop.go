// Package eventloop provides the single-threaded scheduler the
// reprogrammer and the reference flow table run on.
//
// All state owned by those components is touched only from callbacks
// run by a scheduler, so none of it needs locking. Loop runs callbacks
// on one goroutine against a real (or injected) clock; Manual runs them
// on the caller's goroutine against a virtual clock and is used where
// tests need exact control over ordering and time.
package eventloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"github.com/frobware/go-flowreprog/interpreter"
)

// ErrStopped is returned by Do once the loop has stopped running.
var ErrStopped = errors.New("event loop stopped")

// Loop is a cooperative event loop. Callbacks run one at a time, in
// the order they were posted, on the goroutine that called Run.
type Loop struct {
	clock  clock.WithDelayedExecution
	logger *slog.Logger

	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
	done  chan struct{}
}

var _ interpreter.Scheduler = (*Loop)(nil)

// Option configures a Loop.
type Option func(*Loop)

// WithClock sets the clock used for Now and AfterFunc.
func WithClock(c clock.WithDelayedExecution) Option {
	return func(l *Loop) { l.clock = c }
}

// WithLogger sets the loop's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// New returns a loop that is not yet running.
func New(opts ...Option) *Loop {
	l := &Loop{
		clock:  clock.RealClock{},
		logger: slog.Default(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "eventloop")
	return l
}

// Post queues fn. It never blocks and may be called from any
// goroutine, including from a callback.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// AfterFunc posts fn once d has elapsed on the loop's clock.
func (l *Loop) AfterFunc(d time.Duration, fn func()) interpreter.Timer {
	t := &loopTimer{}
	t.timer = l.clock.AfterFunc(d, func() {
		l.Post(func() {
			if t.fired.CompareAndSwap(false, true) {
				fn()
			}
		})
	})
	return t
}

// Now returns the loop clock's current time.
func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

// Do runs fn on the loop and waits for it to return. It fails with
// ctx's error if ctx ends first, or ErrStopped if the loop exits.
// fn may still run after Do has given up waiting.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Run processes callbacks until ctx is cancelled. Callbacks still
// queued at that point are discarded. Run must be called at most once.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	l.logger.Debug("event loop started")
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range batch {
			if ctx.Err() != nil {
				break
			}
			fn()
		}

		select {
		case <-ctx.Done():
			l.logger.Debug("event loop stopped", "reason", context.Cause(ctx))
			return nil
		case <-l.wake:
		}
	}
}

type loopTimer struct {
	timer clock.Timer
	fired atomic.Bool
}

// Stop reports whether it prevented the callback from running.
func (t *loopTimer) Stop() bool {
	t.timer.Stop()
	return t.fired.CompareAndSwap(false, true)
}
