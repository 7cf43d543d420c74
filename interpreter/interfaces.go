// Package interpreter contains interfaces and executors for effects.
// This is the only package that performs actual I/O.
package interpreter

import (
	"context"
	"io"
	"time"

	"github.com/frobware/go-flowreprog"
)

// FlowReader reads the configured flow-entry set synchronously.
type FlowReader interface {
	// Exists reports whether an entry named name is configured.
	Exists(name string) bool
	// Entry returns the configured entry named name.
	Entry(name string) (flowreprog.Entry, bool)
}

// FlowWriter submits changes to the flow table. Both calls return
// once the request is accepted; the hardware result arrives later as a
// status event.
type FlowWriter interface {
	// EntrySet installs or replaces an entry. Exactly one CREATED or
	// REJECTED status follows.
	EntrySet(ctx context.Context, entry flowreprog.Entry) error
	// EntryDel removes an entry. A DELETED status follows, unless the
	// name is not configured, in which case nothing happens.
	EntryDel(ctx context.Context, name string) error
}

// Watcher receives flow status events.
type Watcher interface {
	OnFlowStatus(ctx context.Context, name string, status flowreprog.Status)
}

// WatcherFunc adapts a function to Watcher.
type WatcherFunc func(ctx context.Context, name string, status flowreprog.Status)

// OnFlowStatus calls f.
func (f WatcherFunc) OnFlowStatus(ctx context.Context, name string, status flowreprog.Status) {
	f(ctx, name, status)
}

// FlowTable is a flow-table service: a reader, a writer and a source
// of status events for every flow in the system.
type FlowTable interface {
	FlowReader
	FlowWriter
	WatchAll(w Watcher)
}

// Timer is a pending scheduled callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether
	// the timer was stopped before firing.
	Stop() bool
}

// Scheduler runs callbacks on a single event-loop goroutine.
type Scheduler interface {
	// Post queues fn to run on the loop.
	Post(fn func())
	// AfterFunc queues fn to run on the loop after d.
	AfterFunc(d time.Duration, fn func()) Timer
	// Now returns the scheduler's notion of the current time.
	Now() time.Time
}

// EntryReader reads persisted flow entries.
// Get returns store.ErrNotFound if the entry does not exist.
type EntryReader interface {
	Get(ctx context.Context, name string) (flowreprog.Entry, error)
}

// EntryWriter writes persisted flow entries.
type EntryWriter interface {
	Save(ctx context.Context, entry flowreprog.Entry) error
	Delete(ctx context.Context, name string) error
}

// EntryLister lists persisted flow entries ordered by name.
type EntryLister interface {
	List(ctx context.Context) ([]flowreprog.Entry, error)
}

// Store persists the configured flow-entry set so that a restarted
// process sees the switch state as ground truth.
type Store interface {
	io.Closer
	EntryReader
	EntryWriter
	EntryLister
}
