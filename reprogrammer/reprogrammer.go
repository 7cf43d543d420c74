// Package reprogrammer updates flow entries in place without a gap in
// forwarding, on top of a flow table that has no atomic replace.
//
// # Protocol
//
// A first install of a name is passed straight to the flow table. An
// update of an installed entry goes through three tracked phases:
//
//  1. temp-pending: a copy of the desired entry is set under the
//     temporary name at priority+1 and shadows the old real entry.
//  2. real-pending: once the temporary entry is CREATED the desired
//     entry is set under the real name.
//  3. cleanup: once the real entry is CREATED the temporary entry is
//     deleted; its DELETED event completes the request.
//
// If either set is REJECTED, or an awaited event does not arrive in
// time, the reprogrammer falls back to deleting both entries and
// setting the desired entry once, accepting a short gap.
//
// # Correlation
//
// The flow table reports events by name only. The reprogrammer keeps a
// per-name ledger of the sets it issued and counts the CREATED and
// REJECTED events that answer them, so a phase acts only on the answer
// to its own set and not on a late answer to an earlier one.
//
// # Threading
//
// A Reprogrammer is not safe for concurrent use. UpdateFlow, Pending
// and the callbacks registered with the flow table and scheduler must
// all run on the scheduler's goroutine.
package reprogrammer

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/frobware/go-flowreprog"
	"github.com/frobware/go-flowreprog/action"
	"github.com/frobware/go-flowreprog/compute"
	"github.com/frobware/go-flowreprog/interpreter"
	"github.com/frobware/go-flowreprog/logging"
)

// Update kinds reported to a Recorder.
const (
	UpdateInstall   = "install"
	UpdateReprogram = "reprogram"
	UpdateRetarget  = "retarget"
	UpdateNoop      = "noop"
	UpdateFallback  = "fallback"
	UpdateRefused   = "refused"
)

// Recorder receives metrics about updates and finished requests.
type Recorder interface {
	UpdateRequested(kind string)
	RequestFinished(o compute.Outcome, elapsed time.Duration)
}

// Option configures a Reprogrammer.
type Option func(*Reprogrammer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reprogrammer) { r.logger = logger }
}

// WithTimeout bounds every awaited flow-table operation. Zero
// disables timeouts.
func WithTimeout(d time.Duration) Option {
	return func(r *Reprogrammer) { r.settings.Timeout = d }
}

// WithOverflowPolicy selects what happens to an update at
// MaxPriority.
func WithOverflowPolicy(p compute.OverflowPolicy) Option {
	return func(r *Reprogrammer) { r.settings.Overflow = p }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Reprogrammer) { r.recorder = rec }
}

// WithOpIDs replaces the uuid op id generator.
func WithOpIDs(next func() string) Option {
	return func(r *Reprogrammer) { r.newOpID = next }
}

// Reprogrammer owns the map of flows being reprogrammed.
type Reprogrammer struct {
	flows    interpreter.FlowTable
	sched    interpreter.Scheduler
	executor interpreter.ActionExecutor
	logger   *slog.Logger
	settings compute.Settings
	recorder Recorder
	newOpID  func() string

	pending   map[string]*compute.Request
	temps     map[string]string
	timers    map[string]interpreter.Timer
	ledger    *ledger
	observers []func(compute.Outcome)

	// npending mirrors len(pending) for readers off the loop.
	npending atomic.Int64
}

// New creates a Reprogrammer and registers it for status events on
// every flow in flows.
func New(flows interpreter.FlowTable, sched interpreter.Scheduler, opts ...Option) *Reprogrammer {
	r := &Reprogrammer{
		flows:    flows,
		sched:    sched,
		logger:   slog.Default(),
		recorder: nopRecorder{},
		newOpID:  uuid.NewString,
		pending:  make(map[string]*compute.Request),
		temps:    make(map[string]string),
		timers:   make(map[string]interpreter.Timer),
		ledger:   newLedger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "reprogrammer")
	r.executor = interpreter.NewExecutor(&issuingWriter{flows: flows, ledger: r.ledger}, sched, r.onTimer, r.onArmed)
	flows.WatchAll(r)
	return r
}

// OnOutcome registers fn to be called, on the loop, whenever a
// tracked request ends.
func (r *Reprogrammer) OnOutcome(fn func(compute.Outcome)) {
	r.observers = append(r.observers, fn)
}

// UpdateFlow asks for desired to be installed under desired.Name.
// It returns once the first flow-table operations are issued; the
// change completes asynchronously. Invalid entries, reserved names and
// (under the reject policy) priority overflow are reported here and
// issue nothing.
func (r *Reprogrammer) UpdateFlow(ctx context.Context, desired flowreprog.Entry) error {
	name := desired.Name
	tracked := r.pending[name]
	installed, exists := r.flows.Entry(name)

	opID := r.newOpID()
	if tracked != nil {
		opID = tracked.OpID
	}
	ctx = logging.ContextWithOpID(ctx, opID)

	res, err := compute.Update(compute.UpdateInput{
		Desired:         desired,
		Tracked:         tracked,
		Exists:          exists,
		Installed:       installed,
		NextTempOrdinal: r.ledger.next(flowreprog.TempName(name)),
		OpID:            opID,
		Now:             r.sched.Now(),
		Settings:        r.settings,
	})
	if err != nil {
		r.recorder.UpdateRequested(UpdateRefused)
		r.logger.WarnContext(ctx, "update refused", "name", name, "error", err)
		return err
	}

	kind := updateKind(tracked, res)
	r.recorder.UpdateRequested(kind)
	r.logger.InfoContext(ctx, "update accepted",
		"name", name,
		"kind", kind,
		"priority", desired.Priority,
		"actions", actionNames(res.Actions))

	if err := r.apply(ctx, name, tracked, res); err != nil {
		// Nothing is waiting on a request whose first operation failed.
		if res.Request != nil && tracked == nil {
			r.track(name, nil)
		}
		return fmt.Errorf("update %s: %w", name, err)
	}
	return nil
}

// OnFlowStatus implements interpreter.Watcher.
func (r *Reprogrammer) OnFlowStatus(ctx context.Context, name string, status flowreprog.Status) {
	if status == flowreprog.StatusUnknown {
		return
	}
	var ordinal uint64
	if status == flowreprog.StatusCreated || status == flowreprog.StatusRejected {
		ordinal = r.ledger.settle(name)
	}

	realName, isTemp := name, false
	tracked := r.pending[name]
	if tracked == nil {
		if owner, ok := r.temps[name]; ok {
			realName, isTemp = owner, true
			tracked = r.pending[owner]
		}
	}
	if tracked == nil {
		r.ledger.forget(name)
		r.logger.Log(ctx, logging.LevelTrace.ToSlog(), "untracked status", "name", name, "status", status, "ordinal", ordinal)
		return
	}
	ctx = logging.ContextWithOpID(ctx, tracked.OpID)

	res := compute.Status(compute.StatusInput{
		Tracked:         tracked,
		Name:            name,
		Temp:            isTemp,
		Status:          status,
		Ordinal:         ordinal,
		RealExists:      r.flows.Exists(realName),
		TempExists:      r.flows.Exists(tracked.TempName()),
		NextRealOrdinal: r.ledger.next(realName),
		NextTempOrdinal: r.ledger.next(tracked.TempName()),
		Settings:        r.settings,
	})
	if unchanged(tracked, res) {
		r.logger.DebugContext(ctx, "status ignored",
			"name", name, "status", status, "ordinal", ordinal,
			"phase", tracked.Phase, "await", tracked.Await.Name, "await_ordinal", tracked.Await.Ordinal)
		return
	}

	r.logger.DebugContext(ctx, "status",
		"name", name, "status", status, "ordinal", ordinal,
		"from", tracked.Phase, "to", phaseOf(res.Request),
		"actions", actionNames(res.Actions))
	if err := r.apply(ctx, realName, tracked, res); err != nil {
		r.logger.ErrorContext(ctx, "flow table operation failed", "name", realName, "error", err)
	}
}

func (r *Reprogrammer) onTimer(ctx context.Context, t action.ArmTimer) {
	tracked := r.pending[t.Name]
	if tracked == nil {
		return
	}
	res := compute.Timeout(compute.TimeoutInput{
		Tracked:         tracked,
		OpID:            t.OpID,
		Step:            t.Step,
		NextTempOrdinal: r.ledger.next(tracked.TempName()),
		Settings:        r.settings,
	})
	if unchanged(tracked, res) {
		return
	}
	r.logger.WarnContext(ctx, "awaited operation timed out",
		"name", t.Name, "phase", tracked.Phase, "await", tracked.Await.Name, "after", t.After)
	if err := r.apply(ctx, t.Name, tracked, res); err != nil {
		r.logger.ErrorContext(ctx, "flow table operation failed", "name", t.Name, "error", err)
	}
}

// apply records the transition's request before executing its
// actions, so that events the flow table raises synchronously see the
// new state.
func (r *Reprogrammer) apply(ctx context.Context, name string, prev *compute.Request, res compute.Result) error {
	r.track(name, res.Request)
	err := r.executor.ExecuteAll(ctx, res.Actions)
	if res.Request == nil {
		r.ledger.forget(name)
		r.ledger.forget(flowreprog.TempName(name))
	}
	if res.Outcome.Kind != compute.OutcomeNone {
		r.finish(ctx, res.Outcome)
	}
	return err
}

// onArmed records the timer guarding the tracked request's current
// transition.
func (r *Reprogrammer) onArmed(t action.ArmTimer, timer interpreter.Timer) {
	req := r.pending[t.Name]
	if req == nil || req.OpID != t.OpID || req.Step != t.Step {
		timer.Stop()
		return
	}
	r.timers[t.Name] = timer
}

// track stores req as the request for name. The timer armed for the
// previous transition is stopped unless req continues it.
func (r *Reprogrammer) track(name string, req *compute.Request) {
	prev := r.pending[name]
	if prev != nil && (req == nil || req.OpID != prev.OpID || req.Step != prev.Step) {
		if timer, ok := r.timers[name]; ok {
			timer.Stop()
			delete(r.timers, name)
		}
	}
	if prev != nil {
		delete(r.temps, prev.TempName())
	}
	if req == nil {
		delete(r.pending, name)
	} else {
		r.pending[name] = req
		r.temps[req.TempName()] = name
	}
	r.npending.Store(int64(len(r.pending)))
}

func (r *Reprogrammer) finish(ctx context.Context, o compute.Outcome) {
	var elapsed time.Duration
	if !o.Started.IsZero() {
		elapsed = r.sched.Now().Sub(o.Started)
	}
	attrs := []any{"name", o.Name, "outcome", o.Kind, "elapsed", elapsed}
	if o.Cause != "" {
		attrs = append(attrs, "cause", o.Cause)
	}
	if o.Phase != 0 {
		attrs = append(attrs, "phase", o.Phase)
	}
	switch o.Kind {
	case compute.OutcomeCompleted:
		r.logger.InfoContext(ctx, "flow reprogrammed", attrs...)
	default:
		r.logger.WarnContext(ctx, "flow reprogramming ended early", attrs...)
	}
	r.recorder.RequestFinished(o, elapsed)
	for _, fn := range r.observers {
		fn(o)
	}
}

// Pending returns a copy of every tracked request, ordered by name.
func (r *Reprogrammer) Pending() []compute.Request {
	out := make([]compute.Request, 0, len(r.pending))
	for _, name := range slices.Sorted(maps.Keys(r.pending)) {
		out = append(out, *r.pending[name].Clone())
	}
	return out
}

// Lookup returns a copy of the request tracked for name.
func (r *Reprogrammer) Lookup(name string) (compute.Request, bool) {
	req, ok := r.pending[name]
	if !ok {
		return compute.Request{}, false
	}
	return *req.Clone(), true
}

// PendingCount returns the number of tracked requests. Unlike the
// other methods it may be called from any goroutine.
func (r *Reprogrammer) PendingCount() int {
	return int(r.npending.Load())
}

// Settings returns the transition settings in force.
func (r *Reprogrammer) Settings() compute.Settings {
	return r.settings
}

func unchanged(tracked *compute.Request, res compute.Result) bool {
	return res.Request == tracked && len(res.Actions) == 0 && res.Outcome.Kind == compute.OutcomeNone
}

func updateKind(tracked *compute.Request, res compute.Result) string {
	switch {
	case res.Outcome.Kind == compute.OutcomeFellBack:
		return UpdateFallback
	case tracked != nil && res.Request != tracked:
		return UpdateRetarget
	case len(res.Actions) == 0:
		return UpdateNoop
	case res.Request == nil:
		return UpdateInstall
	default:
		return UpdateReprogram
	}
}

func phaseOf(req *compute.Request) string {
	if req == nil {
		return "untracked"
	}
	return req.Phase.String()
}

func actionNames(actions []action.Action) []string {
	names := make([]string, 0, len(actions))
	for _, a := range actions {
		names = append(names, fmt.Sprint(a))
	}
	return names
}

// issuingWriter records every accepted set in the ledger.
type issuingWriter struct {
	flows  interpreter.FlowWriter
	ledger *ledger
}

func (w *issuingWriter) EntrySet(ctx context.Context, e flowreprog.Entry) error {
	// Counted first: the answer may be delivered before EntrySet
	// returns.
	w.ledger.issue(e.Name)
	if err := w.flows.EntrySet(ctx, e); err != nil {
		w.ledger.unissue(e.Name)
		return err
	}
	return nil
}

func (w *issuingWriter) EntryDel(ctx context.Context, name string) error {
	return w.flows.EntryDel(ctx, name)
}

type nopRecorder struct{}

func (nopRecorder) UpdateRequested(string)                         {}
func (nopRecorder) RequestFinished(compute.Outcome, time.Duration) {}
