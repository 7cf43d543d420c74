package reprogrammer_test

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/netip"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/frobware/go-flowreprog"
	"github.com/frobware/go-flowreprog/compute"
	"github.com/frobware/go-flowreprog/eventloop"
	"github.com/frobware/go-flowreprog/interpreter"
	"github.com/frobware/go-flowreprog/logging"
	"github.com/frobware/go-flowreprog/reprogrammer"
)

// testLogger discards output unless FLOWREPROG_TEST_LOG is set, in
// which case it is used as the log spec.
func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	spec := os.Getenv("FLOWREPROG_TEST_LOG")
	if spec == "" {
		return logging.Discard()
	}
	logger, closer, err := logging.New(logging.Options{CLISpec: spec, Output: os.Stderr})
	require.NoError(t, err)
	t.Cleanup(func() { closer.Close() })
	return logger
}

// fakeTable is a flow table whose status events are delivered by the
// test. It records every write as "set:NAME" or "del:NAME".
type fakeTable struct {
	entries  map[string]flowreprog.Entry
	ops      []string
	watchers []interpreter.Watcher
	failSet  map[string]error
}

var _ interpreter.FlowTable = (*fakeTable)(nil)

func newFakeTable() *fakeTable {
	return &fakeTable{
		entries: make(map[string]flowreprog.Entry),
		failSet: make(map[string]error),
	}
}

func (f *fakeTable) Exists(name string) bool {
	_, ok := f.entries[name]
	return ok
}

func (f *fakeTable) Entry(name string) (flowreprog.Entry, bool) {
	e, ok := f.entries[name]
	return e.Clone(), ok
}

func (f *fakeTable) EntrySet(_ context.Context, e flowreprog.Entry) error {
	if err := f.failSet[e.Name]; err != nil {
		return err
	}
	f.ops = append(f.ops, "set:"+e.Name)
	f.entries[e.Name] = e.Clone()
	return nil
}

func (f *fakeTable) EntryDel(_ context.Context, name string) error {
	f.ops = append(f.ops, "del:"+name)
	delete(f.entries, name)
	return nil
}

func (f *fakeTable) WatchAll(w interpreter.Watcher) {
	f.watchers = append(f.watchers, w)
}

// deliver raises a status event for name.
func (f *fakeTable) deliver(name string, s flowreprog.Status) {
	for _, w := range f.watchers {
		w.OnFlowStatus(context.Background(), name, s)
	}
}

// install places e in the table as if it had been programmed before
// the reprogrammer started.
func (f *fakeTable) install(e flowreprog.Entry) {
	f.entries[e.Name] = e.Clone()
}

// externalDelete removes name the way a third party would.
func (f *fakeTable) externalDelete(name string) {
	delete(f.entries, name)
}

func (f *fakeTable) names() []string {
	return slices.Sorted(maps.Keys(f.entries))
}

// takeOps returns and clears the recorded operations.
func (f *fakeTable) takeOps() []string {
	ops := f.ops
	f.ops = nil
	return ops
}

// fakeRecorder captures metrics calls.
type fakeRecorder struct {
	updates  []string
	outcomes []string
}

func (r *fakeRecorder) UpdateRequested(kind string) {
	r.updates = append(r.updates, kind)
}

func (r *fakeRecorder) RequestFinished(o compute.Outcome, _ time.Duration) {
	r.outcomes = append(r.outcomes, o.Kind.String())
}

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	t        *testing.T
	table    *fakeTable
	sched    *eventloop.Manual
	rp       *reprogrammer.Reprogrammer
	rec      *fakeRecorder
	outcomes []compute.Outcome
}

func newFixture(t *testing.T, opts ...reprogrammer.Option) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		table: newFakeTable(),
		sched: eventloop.NewManual(epoch),
		rec:   &fakeRecorder{},
	}
	n := 0
	opts = append([]reprogrammer.Option{
		reprogrammer.WithLogger(testLogger(t)),
		reprogrammer.WithRecorder(f.rec),
		reprogrammer.WithOpIDs(func() string { n++; return fmt.Sprintf("op-%d", n) }),
	}, opts...)
	f.rp = reprogrammer.New(f.table, f.sched, opts...)
	f.rp.OnOutcome(func(o compute.Outcome) { f.outcomes = append(f.outcomes, o) })
	return f
}

func (f *fixture) update(e flowreprog.Entry) {
	f.t.Helper()
	require.NoError(f.t, f.rp.UpdateFlow(context.Background(), e))
}

// phase returns the tracked phase of name, or "untracked".
func (f *fixture) phase(name string) string {
	for _, r := range f.rp.Pending() {
		if r.Name() == name {
			return r.Phase.String()
		}
	}
	return "untracked"
}

func (f *fixture) lastOutcome() compute.Outcome {
	f.t.Helper()
	require.NotEmpty(f.t, f.outcomes)
	return f.outcomes[len(f.outcomes)-1]
}

func flow(name string, prio flowreprog.Priority, out string) flowreprog.Entry {
	return flowreprog.Entry{
		Name:     name,
		Priority: prio,
		Match: flowreprog.Match{
			InputIntfs: []string{"Ethernet1"},
			IPDst:      netip.MustParsePrefix("10.0.0.0/8"),
		},
		Action: flowreprog.Action{OutputIntfs: []string{out}},
	}
}
