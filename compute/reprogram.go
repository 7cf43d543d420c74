// Package compute contains pure functions for business logic.
// Functions in this package perform no I/O - they transform a tracked
// request plus the facts fetched from the flow table into the next
// request and the actions needed to get there.
package compute

import (
	"fmt"
	"time"

	"github.com/frobware/go-flowreprog"
	"github.com/frobware/go-flowreprog/action"
)

// OverflowPolicy decides what happens when an in-place update cannot
// place its temporary entry at priority+1.
type OverflowPolicy int

const (
	// OverflowReject returns flowreprog.ErrPriorityOverflow to the
	// caller and issues nothing.
	OverflowReject OverflowPolicy = iota
	// OverflowFallback replaces the entry with delete-then-set,
	// accepting a traffic gap.
	OverflowFallback
)

// ParseOverflowPolicy parses "reject" or "fallback".
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "", "reject":
		return OverflowReject, nil
	case "fallback":
		return OverflowFallback, nil
	default:
		return OverflowReject, fmt.Errorf("unknown overflow policy %q", s)
	}
}

func (p OverflowPolicy) String() string {
	if p == OverflowFallback {
		return "fallback"
	}
	return "reject"
}

// Settings parameterise the transition functions.
type Settings struct {
	// Timeout bounds each awaited operation. Zero disables timers.
	Timeout  time.Duration
	Overflow OverflowPolicy
}

// Result is the outcome of one transition.
//
// Request is the record to track after the transition; nil means the
// flow is (or stays) untracked. Callers must store Request before
// executing Actions.
type Result struct {
	Request *Request
	Actions []action.Action
	Outcome Outcome
}

// UpdateInput carries everything Update needs.
type UpdateInput struct {
	Desired flowreprog.Entry

	// Tracked is the current request for Desired.Name, if any.
	Tracked *Request

	// Exists and Installed describe the flow table's entry under
	// Desired.Name.
	Exists    bool
	Installed flowreprog.Entry

	// NextTempOrdinal is the ordinal the next SetEntry for the
	// temporary name will receive.
	NextTempOrdinal uint64

	OpID     string
	Now      time.Time
	Settings Settings
}

// Update computes the response to a caller asking for Desired to be
// installed. A non-nil error is a caller error; nothing is issued.
func Update(in UpdateInput) (Result, error) {
	desired := in.Desired.Clone()
	unchanged := Result{Request: in.Tracked}

	if err := desired.Validate(); err != nil {
		return unchanged, err
	}
	overflow := desired.Priority == flowreprog.MaxPriority

	if in.Tracked != nil {
		if in.Tracked.Desired.Equal(desired) {
			return unchanged, nil
		}
		if overflow {
			if in.Settings.Overflow == OverflowReject {
				return unchanged, fmt.Errorf("update %s: %w", desired.Name, flowreprog.ErrPriorityOverflow)
			}
			return fallback(in.Tracked, desired, CauseOverflow), nil
		}
		// The in-flight operation is left to complete; the next
		// status event picks up the new generation.
		next := in.Tracked.Clone()
		next.Desired = desired
		next.Generation++
		return Result{Request: next}, nil
	}

	if !in.Exists {
		// Nothing carries traffic yet, so there is nothing to protect.
		return Result{Actions: []action.Action{action.SetEntry{Entry: desired}}}, nil
	}

	if in.Installed.Equal(desired) {
		return unchanged, nil
	}

	if overflow {
		if in.Settings.Overflow == OverflowReject {
			return unchanged, fmt.Errorf("update %s: %w", desired.Name, flowreprog.ErrPriorityOverflow)
		}
		return Result{
			Actions: []action.Action{
				action.DeleteEntry{Name: desired.Name},
				action.SetEntry{Entry: desired},
			},
			Outcome: Outcome{
				Kind:    OutcomeFellBack,
				Name:    desired.Name,
				Cause:   CauseOverflow,
				Desired: desired,
				OpID:    in.OpID,
				Started: in.Now,
			},
		}, nil
	}

	tmp, err := desired.TempEntry()
	if err != nil {
		return unchanged, err
	}
	req := &Request{
		Desired:    desired,
		Phase:      PhaseTempPending,
		Generation: 1,
		Applied:    1,
		Step:       1,
		Await:      Await{Name: tmp.Name, Ordinal: in.NextTempOrdinal},
		OpID:       in.OpID,
		Started:    in.Now,
	}
	actions := []action.Action{action.SetEntry{Entry: tmp}}
	return Result{Request: req, Actions: withTimer(actions, req, in.Settings)}, nil
}

// StatusInput carries a status event and the facts fetched for it.
type StatusInput struct {
	// Tracked is the request for the event's real flow name, if any.
	Tracked *Request

	// Name is the event's flow name; Temp reports whether it is the
	// temporary name of a tracked flow.
	Name   string
	Temp   bool
	Status flowreprog.Status

	// Ordinal is the ordinal of the SetEntry a CREATED or REJECTED
	// event completes, or zero if the event does not complete one of
	// ours.
	Ordinal uint64

	// RealExists and TempExists report whether the flow table holds
	// the real and temporary entries at the time of the event.
	RealExists bool
	TempExists bool

	NextRealOrdinal uint64
	NextTempOrdinal uint64

	Settings Settings
}

// Status computes the transition driven by a flow status event.
// Events that do not concern a tracked request leave it unchanged.
func Status(in StatusInput) Result {
	if in.Tracked == nil {
		return Result{}
	}
	req := in.Tracked
	unchanged := Result{Request: req}

	awaited := in.Ordinal != 0 &&
		req.Await.Ordinal == in.Ordinal &&
		req.Await.Name == in.Name

	switch in.Status {
	case flowreprog.StatusCreated:
		switch {
		case req.Phase == PhaseTempPending && in.Temp && awaited:
			if !in.RealExists {
				// Removed by someone else before its DELETED arrived.
				return abort(req, in.TempExists)
			}
			return submitReal(req, in.NextRealOrdinal, in.Settings)
		case req.Phase == PhaseRealPending && !in.Temp && awaited:
			if req.Stale() {
				return submitReal(req, in.NextRealOrdinal, in.Settings)
			}
			if !in.TempExists {
				return complete(req)
			}
			next := req.Clone()
			next.Phase = PhaseCleanup
			next.Step++
			next.Await = Await{Name: next.TempName()}
			actions := []action.Action{action.DeleteEntry{Name: next.TempName()}}
			return Result{Request: next, Actions: withTimer(actions, next, in.Settings)}
		}

	case flowreprog.StatusRejected:
		if !awaited {
			return unchanged
		}
		if (req.Phase == PhaseTempPending && in.Temp) || (req.Phase == PhaseRealPending && !in.Temp) {
			return fallback(req, req.Desired, CauseRejected)
		}

	case flowreprog.StatusDeleted:
		if !in.Temp {
			if in.RealExists {
				// Superseded by a later set of the same name.
				return unchanged
			}
			return abort(req, in.TempExists)
		}
		if req.Phase != PhaseCleanup {
			return unchanged
		}
		if req.Stale() {
			return restart(req, in.NextTempOrdinal, in.Settings)
		}
		return complete(req)
	}

	return unchanged
}

// TimeoutInput carries a fired timer.
type TimeoutInput struct {
	Tracked *Request

	// OpID and Step identify the request and transition that armed
	// the timer.
	OpID string
	Step uint64

	NextTempOrdinal uint64

	Settings Settings
}

// Timeout computes the response to a timer armed for OpID and Step.
// Timers whose request or transition has been superseded are ignored.
func Timeout(in TimeoutInput) Result {
	req := in.Tracked
	if req == nil {
		return Result{}
	}
	if req.OpID != in.OpID || req.Step != in.Step {
		return Result{Request: req}
	}
	if req.Phase == PhaseCleanup {
		if req.Stale() {
			// A newer entry arrived while the temporary one was being
			// removed; reprogram it rather than dropping it.
			return restart(req, in.NextTempOrdinal, in.Settings)
		}
		// The desired entry is live; only the temporary entry may
		// linger, so retry its deletion without a disruptive fallback.
		return Result{
			Actions: []action.Action{action.DeleteEntry{Name: req.TempName()}},
			Outcome: outcome(req, OutcomeTimedOut, CauseTimeout),
		}
	}
	res := fallback(req, req.Desired, CauseTimeout)
	res.Outcome.Kind = OutcomeTimedOut
	return res
}

func submitReal(req *Request, ordinal uint64, s Settings) Result {
	next := req.Clone()
	next.Phase = PhaseRealPending
	next.Applied = next.Generation
	next.Step++
	next.Await = Await{Name: next.Name(), Ordinal: ordinal}
	actions := []action.Action{action.SetEntry{Entry: next.Desired.Clone()}}
	return Result{Request: next, Actions: withTimer(actions, next, s)}
}

func restart(req *Request, ordinal uint64, s Settings) Result {
	tmp, err := req.Desired.TempEntry()
	if err != nil {
		return fallback(req, req.Desired, CauseOverflow)
	}
	next := req.Clone()
	next.Phase = PhaseTempPending
	next.Applied = next.Generation
	next.Step++
	next.Await = Await{Name: tmp.Name, Ordinal: ordinal}
	actions := []action.Action{action.SetEntry{Entry: tmp}}
	return Result{Request: next, Actions: withTimer(actions, next, s)}
}

func complete(req *Request) Result {
	return Result{Outcome: outcome(req, OutcomeCompleted, "")}
}

func abort(req *Request, tempExists bool) Result {
	var actions []action.Action
	if tempExists && req.Phase != PhaseCleanup {
		actions = append(actions, action.DeleteEntry{Name: req.TempName()})
	}
	return Result{Actions: actions, Outcome: outcome(req, OutcomeAborted, "")}
}

// fallback deletes both entries and submits desired once under the
// real name, dropping tracking.
func fallback(req *Request, desired flowreprog.Entry, cause Cause) Result {
	res := Result{
		Actions: []action.Action{
			action.DeleteEntry{Name: flowreprog.TempName(desired.Name)},
			action.DeleteEntry{Name: desired.Name},
			action.SetEntry{Entry: desired.Clone()},
		},
		Outcome: outcome(req, OutcomeFellBack, cause),
	}
	res.Outcome.Desired = desired.Clone()
	return res
}

func outcome(req *Request, kind OutcomeKind, cause Cause) Outcome {
	return Outcome{
		Kind:    kind,
		Name:    req.Name(),
		Phase:   req.Phase,
		Cause:   cause,
		Desired: req.Desired.Clone(),
		OpID:    req.OpID,
		Started: req.Started,
	}
}

func withTimer(actions []action.Action, req *Request, s Settings) []action.Action {
	if s.Timeout <= 0 {
		return actions
	}
	return append(actions, action.ArmTimer{Name: req.Name(), OpID: req.OpID, Step: req.Step, After: s.Timeout})
}
