package flowtable_test

import (
	"context"
	"fmt"
	"net/netip"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-flowreprog"
	"github.com/frobware/go-flowreprog/eventloop"
	"github.com/frobware/go-flowreprog/flowtable"
	"github.com/frobware/go-flowreprog/interpreter/store/memory"
	"github.com/frobware/go-flowreprog/logging"
)

const latency = 10 * time.Millisecond

type fixture struct {
	t      *testing.T
	sched  *eventloop.Manual
	store  *memory.Store
	table  *flowtable.Table
	events []string
}

func newFixture(t *testing.T, opts ...flowtable.Option) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		sched: eventloop.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		store: memory.New(),
	}
	f.open(opts...)
	return f
}

func (f *fixture) open(opts ...flowtable.Option) {
	f.t.Helper()
	opts = append([]flowtable.Option{flowtable.WithLatency(latency), flowtable.WithLogger(logging.Discard())}, opts...)
	table, err := flowtable.Open(context.Background(), f.sched, f.store, opts...)
	require.NoError(f.t, err)
	table.WatchAll(watcher(func(_ context.Context, name string, s flowreprog.Status) {
		f.events = append(f.events, fmt.Sprintf("%s:%s", name, s))
	}))
	f.table = table
}

type watcher func(ctx context.Context, name string, s flowreprog.Status)

func (w watcher) OnFlowStatus(ctx context.Context, name string, s flowreprog.Status) { w(ctx, name, s) }

func entry(name string, prio flowreprog.Priority, out ...string) flowreprog.Entry {
	return flowreprog.Entry{
		Name:     name,
		Priority: prio,
		Match:    flowreprog.Match{IPDst: netip.MustParsePrefix("10.0.0.0/8")},
		Action:   flowreprog.Action{OutputIntfs: out},
	}
}

func TestEntrySet_ConfigIsImmediateProgrammingIsNot(t *testing.T) {
	f := newFixture(t)
	e := entry("F", 100, "Ethernet1")

	require.NoError(t, f.table.EntrySet(context.Background(), e))

	assert.True(t, f.table.Exists("F"))
	got, ok := f.table.Entry("F")
	require.True(t, ok)
	assert.Empty(t, cmp.Diff(e, got))
	status, _ := f.table.Status("F")
	assert.Equal(t, flowreprog.StatusUnknown, status)
	assert.Empty(t, f.table.Programmed())
	assert.Empty(t, f.events)

	f.sched.Advance(latency)
	assert.Equal(t, []string{"F:created"}, f.events)
	status, _ = f.table.Status("F")
	assert.Equal(t, flowreprog.StatusCreated, status)
	assert.Len(t, f.table.Programmed(), 1)

	stored, err := f.store.Get(context.Background(), "F")
	require.NoError(t, err)
	assert.True(t, stored.Equal(e))
}

func TestQueueIsFIFOWithOneStatusPerOperation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.table.EntrySet(ctx, entry("A", 1, "e1")))
	require.NoError(t, f.table.EntrySet(ctx, entry("B", 1, "e1")))
	require.NoError(t, f.table.EntryDel(ctx, "A"))
	require.NoError(t, f.table.EntrySet(ctx, entry("A", 2, "e2")))
	assert.Equal(t, 4, f.table.QueueLen())

	f.sched.Advance(latency)
	assert.Equal(t, []string{"A:created"}, f.events)

	f.sched.Advance(3 * latency)
	assert.Equal(t, []string{"A:created", "B:created", "A:deleted", "A:created"}, f.events)

	got, ok := f.table.Entry("A")
	require.True(t, ok)
	assert.Equal(t, flowreprog.Priority(2), got.Priority)
	assert.Equal(t, 0, f.table.QueueLen())
}

func TestEntryDel_UnknownNameIsSilent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.table.EntryDel(context.Background(), "nope"))
	f.sched.Drain()
	assert.Empty(t, f.events)
}

func TestEntryDel_RemovesConfigAndStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.table.EntrySet(ctx, entry("F", 1, "e1")))
	f.sched.Drain()

	require.NoError(t, f.table.EntryDel(ctx, "F"))
	assert.False(t, f.table.Exists("F"))
	assert.Len(t, f.table.Programmed(), 1, "still in hardware until the delete completes")

	f.sched.Drain()
	assert.Equal(t, []string{"F:created", "F:deleted"}, f.events)
	assert.Empty(t, f.table.Programmed())
	entries, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEntrySet_EmptyName(t *testing.T) {
	f := newFixture(t)
	err := f.table.EntrySet(context.Background(), flowreprog.Entry{})
	assert.ErrorIs(t, err, flowreprog.ErrEmptyName)
}

func TestCapacity_RejectsNewSlotsOnly(t *testing.T) {
	f := newFixture(t, flowtable.WithCapacity(1))
	ctx := context.Background()

	require.NoError(t, f.table.EntrySet(ctx, entry("A", 1, "e1")))
	require.NoError(t, f.table.EntrySet(ctx, entry("B", 1, "e1")))
	require.NoError(t, f.table.EntrySet(ctx, entry("A", 5, "e2")))
	f.sched.Drain()

	assert.Equal(t, []string{"A:created", "B:rejected", "A:created"}, f.events)
	assert.True(t, f.table.Exists("B"), "rejected entries stay configured")
	reason, ok := f.table.RejectedReason("B")
	require.True(t, ok)
	assert.Equal(t, flowreprog.RejectedHWTableFull, reason)
	_, ok = f.table.RejectedReason("A")
	assert.False(t, ok)
}

func TestRejector(t *testing.T) {
	f := newFixture(t, flowtable.WithRejector(func(e flowreprog.Entry) (flowreprog.RejectedReason, bool) {
		return flowreprog.RejectedBadAction, e.Action.Drop
	}))
	ctx := context.Background()
	drop := entry("D", 1)
	drop.Action.Drop = true

	require.NoError(t, f.table.EntrySet(ctx, drop))
	require.NoError(t, f.table.EntrySet(ctx, entry("F", 1, "e1")))
	f.sched.Drain()

	assert.Equal(t, []string{"D:rejected", "F:created"}, f.events)
	reason, ok := f.table.RejectedReason("D")
	require.True(t, ok)
	assert.Equal(t, flowreprog.RejectedBadAction, reason)
}

func TestStatusTracksLatestSetOnly(t *testing.T) {
	f := newFixture(t, flowtable.WithCapacity(1))
	ctx := context.Background()
	require.NoError(t, f.table.EntrySet(ctx, entry("A", 1, "e1")))
	require.NoError(t, f.table.EntrySet(ctx, entry("B", 1, "e1")))
	// B's first set is rejected but its replacement is still queued.
	require.NoError(t, f.table.EntryDel(ctx, "A"))
	require.NoError(t, f.table.EntrySet(ctx, entry("B", 2, "e1")))

	f.sched.Advance(2 * latency)
	status, _ := f.table.Status("B")
	assert.Equal(t, flowreprog.StatusUnknown, status)

	f.sched.Drain()
	status, _ = f.table.Status("B")
	assert.Equal(t, flowreprog.StatusCreated, status)
}

func TestOpen_StoredEntriesAreProgrammed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.table.EntrySet(ctx, entry("F", 7, "e1")))
	f.sched.Drain()

	f.events = nil
	f.open()
	status, ok := f.table.Status("F")
	require.True(t, ok)
	assert.Equal(t, flowreprog.StatusCreated, status)
	assert.Len(t, f.table.Programmed(), 1)
	assert.Empty(t, f.events)
}

func TestClassify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	low := entry("low", 10, "e1")
	high := entry("high", 20, "e2")
	tieA := entry("a-tie", 30, "e3")
	tieA.Match.IPDst = netip.MustParsePrefix("10.1.0.0/16")
	tieB := entry("b-tie", 30, "e4")
	tieB.Match.IPDst = netip.MustParsePrefix("10.1.0.0/16")
	for _, e := range []flowreprog.Entry{low, high, tieA, tieB} {
		require.NoError(t, f.table.EntrySet(ctx, e))
	}
	f.sched.Drain()

	pkt := flowreprog.Packet{IPDst: netip.MustParseAddr("10.2.3.4"), Length: 64}
	got, ok := f.table.Classify(pkt)
	require.True(t, ok)
	assert.Equal(t, "high", got.Name)

	pkt.IPDst = netip.MustParseAddr("10.1.3.4")
	got, ok = f.table.Classify(pkt)
	require.True(t, ok)
	assert.Equal(t, "a-tie", got.Name)

	_, ok = f.table.Classify(flowreprog.Packet{IPDst: netip.MustParseAddr("192.168.0.1")})
	assert.False(t, ok)

	c, ok := f.table.Counters("high")
	require.True(t, ok)
	assert.Equal(t, flowreprog.Counters{Packets: 1, Bytes: 64}, c)
	c, _ = f.table.Counters("low")
	assert.Zero(t, c.Packets)
}

func TestClassify_IgnoresUnprogrammed(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.table.EntrySet(context.Background(), entry("F", 1, "e1")))

	_, ok := f.table.Classify(flowreprog.Packet{IPDst: netip.MustParseAddr("10.0.0.1")})
	assert.False(t, ok, "configured but not yet programmed")
}

func TestEntries_SortedByName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, n := range []string{"c", "a", "b"} {
		require.NoError(t, f.table.EntrySet(ctx, entry(n, 1, "e1")))
	}
	var names []string
	for _, e := range f.table.Entries() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}
