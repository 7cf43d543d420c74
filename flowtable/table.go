// Package flowtable is an in-process flow-table service.
//
// The configured entry set is updated synchronously by EntrySet and
// EntryDel and persisted to a store. Hardware programming is modelled
// as a FIFO queue drained by the scheduler: every queued operation
// completes after the configured latency and produces exactly one
// status event, delivered to every watcher. The hardware table has an
// optional capacity; a set that needs a new slot in a full table is
// rejected with RejectedHWTableFull.
//
// A Table is not safe for concurrent use. All methods, and the
// scheduler callbacks it arms, must run on the scheduler's goroutine.
package flowtable

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/frobware/go-flowreprog"
	"github.com/frobware/go-flowreprog/interpreter"
	"github.com/frobware/go-flowreprog/logging"
)

// Rejector lets a test or a policy refuse an entry the way hardware
// would. Returning false accepts the entry.
type Rejector func(flowreprog.Entry) (flowreprog.RejectedReason, bool)

// Option configures a Table.
type Option func(*Table)

// WithCapacity bounds the number of programmed entries. Zero means
// unbounded.
func WithCapacity(n int) Option {
	return func(t *Table) { t.capacity = n }
}

// WithLatency sets how long each hardware operation takes.
func WithLatency(d time.Duration) Option {
	return func(t *Table) { t.latency = d }
}

// WithRejector installs a hardware rejection policy.
func WithRejector(r Rejector) Option {
	return func(t *Table) { t.reject = r }
}

// WithLogger sets the table's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Table) { t.logger = logger }
}

type opKind int

const (
	opSet opKind = iota
	opDel
)

// hwOp is a queued hardware operation.
type hwOp struct {
	ctx   context.Context
	kind  opKind
	name  string
	entry flowreprog.Entry
	seq   uint64
}

// configured is an entry in the configured set.
type configured struct {
	entry  flowreprog.Entry
	status flowreprog.Status
	reason flowreprog.RejectedReason
	// seq identifies the set that produced this configuration.
	seq uint64
}

// programmed is an entry occupying a hardware slot.
type programmed struct {
	entry    flowreprog.Entry
	counters flowreprog.Counters
}

// Table is the reference flow-table service.
type Table struct {
	sched  interpreter.Scheduler
	store  interpreter.Store
	logger *slog.Logger

	capacity int
	latency  time.Duration
	reject   Rejector

	config   map[string]*configured
	hw       map[string]*programmed
	queue    []hwOp
	pumping  bool
	seq      uint64
	watchers []interpreter.Watcher
}

var _ interpreter.FlowTable = (*Table)(nil)

// Open builds a table whose configured and programmed sets are the
// entries already held by store.
func Open(ctx context.Context, sched interpreter.Scheduler, store interpreter.Store, opts ...Option) (*Table, error) {
	t := &Table{
		sched:  sched,
		store:  store,
		logger: slog.Default(),
		config: make(map[string]*configured),
		hw:     make(map[string]*programmed),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("component", "flowtable")

	entries, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load flow entries: %w", err)
	}
	for _, e := range entries {
		t.config[e.Name] = &configured{entry: e, status: flowreprog.StatusCreated}
		t.hw[e.Name] = &programmed{entry: e}
	}
	t.logger.Debug("flow table opened", "entries", len(entries), "capacity", t.capacity, "latency", t.latency)
	return t, nil
}

// WatchAll registers w for status events on every entry.
func (t *Table) WatchAll(w interpreter.Watcher) {
	t.watchers = append(t.watchers, w)
}

// Exists reports whether name is in the configured set.
func (t *Table) Exists(name string) bool {
	_, ok := t.config[name]
	return ok
}

// Entry returns the configured entry named name.
func (t *Table) Entry(name string) (flowreprog.Entry, bool) {
	c, ok := t.config[name]
	if !ok {
		return flowreprog.Entry{}, false
	}
	return c.entry.Clone(), true
}

// Entries returns the configured set ordered by name.
func (t *Table) Entries() []flowreprog.Entry {
	out := make([]flowreprog.Entry, 0, len(t.config))
	for _, name := range slices.Sorted(maps.Keys(t.config)) {
		out = append(out, t.config[name].entry.Clone())
	}
	return out
}

// Status returns the last hardware status of a configured entry.
// Entries whose programming is still queued report StatusUnknown.
func (t *Table) Status(name string) (flowreprog.Status, bool) {
	c, ok := t.config[name]
	if !ok {
		return flowreprog.StatusUnknown, false
	}
	return c.status, true
}

// RejectedReason returns why a configured entry was rejected.
func (t *Table) RejectedReason(name string) (flowreprog.RejectedReason, bool) {
	c, ok := t.config[name]
	if !ok || c.status != flowreprog.StatusRejected {
		return 0, false
	}
	return c.reason, true
}

// Counters returns the packet and byte counts of a programmed entry.
func (t *Table) Counters(name string) (flowreprog.Counters, bool) {
	p, ok := t.hw[name]
	if !ok {
		return flowreprog.Counters{}, false
	}
	return p.counters, true
}

// Programmed returns the entries currently in hardware, ordered by
// name.
func (t *Table) Programmed() []flowreprog.Entry {
	out := make([]flowreprog.Entry, 0, len(t.hw))
	for _, name := range slices.Sorted(maps.Keys(t.hw)) {
		out = append(out, t.hw[name].entry.Clone())
	}
	return out
}

// QueueLen returns the number of hardware operations not yet applied.
func (t *Table) QueueLen() int {
	return len(t.queue)
}

// EntrySet configures entry, replacing any entry of the same name,
// and queues its programming. Exactly one CREATED or REJECTED event
// for entry.Name follows.
func (t *Table) EntrySet(ctx context.Context, entry flowreprog.Entry) error {
	if entry.Name == "" {
		return flowreprog.ErrEmptyName
	}
	entry = entry.Clone()
	if err := t.store.Save(ctx, entry); err != nil {
		return fmt.Errorf("entry set %s: %w", entry.Name, err)
	}
	t.seq++
	t.config[entry.Name] = &configured{entry: entry, seq: t.seq}
	t.enqueue(hwOp{ctx: context.WithoutCancel(ctx), kind: opSet, name: entry.Name, entry: entry, seq: t.seq})
	t.logger.Log(ctx, logging.LevelTrace.ToSlog(), "entry set queued", "name", entry.Name, "priority", entry.Priority, "queued", len(t.queue))
	return nil
}

// EntryDel removes name from the configured set and queues its
// removal from hardware. Deleting a name that is not configured does
// nothing and produces no event.
func (t *Table) EntryDel(ctx context.Context, name string) error {
	if _, ok := t.config[name]; !ok {
		t.logger.Log(ctx, logging.LevelTrace.ToSlog(), "entry del ignored", "name", name)
		return nil
	}
	if err := t.store.Delete(ctx, name); err != nil {
		return fmt.Errorf("entry del %s: %w", name, err)
	}
	delete(t.config, name)
	t.seq++
	t.enqueue(hwOp{ctx: context.WithoutCancel(ctx), kind: opDel, name: name, seq: t.seq})
	t.logger.Log(ctx, logging.LevelTrace.ToSlog(), "entry del queued", "name", name, "queued", len(t.queue))
	return nil
}

func (t *Table) enqueue(op hwOp) {
	t.queue = append(t.queue, op)
	if !t.pumping {
		t.pumping = true
		t.sched.AfterFunc(t.latency, t.pump)
	}
}

// pump applies the head of the queue and re-arms itself while work
// remains.
func (t *Table) pump() {
	if len(t.queue) == 0 {
		t.pumping = false
		return
	}
	op := t.queue[0]
	t.queue = t.queue[1:]

	var status flowreprog.Status
	switch op.kind {
	case opSet:
		status = t.program(op)
	case opDel:
		delete(t.hw, op.name)
		status = flowreprog.StatusDeleted
	}
	t.logger.DebugContext(op.ctx, "hardware status", "name", op.name, "status", status)

	if len(t.queue) > 0 {
		t.sched.AfterFunc(t.latency, t.pump)
	} else {
		t.pumping = false
	}

	for _, w := range t.watchers {
		w.OnFlowStatus(op.ctx, op.name, status)
	}
}

func (t *Table) program(op hwOp) flowreprog.Status {
	status, reason := flowreprog.StatusCreated, flowreprog.RejectedReason(0)
	_, replacing := t.hw[op.name]
	if t.reject != nil {
		if r, rejected := t.reject(op.entry); rejected {
			status, reason = flowreprog.StatusRejected, r
		}
	}
	if status == flowreprog.StatusCreated && !replacing && t.capacity > 0 && len(t.hw) >= t.capacity {
		status, reason = flowreprog.StatusRejected, flowreprog.RejectedHWTableFull
	}

	if status == flowreprog.StatusCreated {
		t.hw[op.name] = &programmed{entry: op.entry}
	} else {
		delete(t.hw, op.name)
	}

	if c, ok := t.config[op.name]; ok && c.seq == op.seq {
		c.status, c.reason = status, reason
	}
	if status == flowreprog.StatusRejected {
		t.logger.WarnContext(op.ctx, "entry rejected", "name", op.name, "reason", reason)
	}
	return status
}

// Classify returns the programmed entry that forwards p: the highest
// priority match, ties going to the lowest name. The winner's
// counters are updated.
func (t *Table) Classify(p flowreprog.Packet) (flowreprog.Entry, bool) {
	var best *programmed
	for _, cand := range t.hw {
		if !cand.entry.Match.Matches(p) {
			continue
		}
		if best == nil || better(cand.entry, best.entry) {
			best = cand
		}
	}
	if best == nil {
		return flowreprog.Entry{}, false
	}
	best.counters.Packets++
	best.counters.Bytes += uint64(max(p.Length, 0))
	return best.entry.Clone(), true
}

func better(a, b flowreprog.Entry) bool {
	if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
		return c > 0
	}
	return a.Name < b.Name
}
