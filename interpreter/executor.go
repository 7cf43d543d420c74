package interpreter

import (
	"context"
	"fmt"

	"github.com/frobware/go-flowreprog/action"
)

// ActionExecutor executes reified actions.
type ActionExecutor interface {
	Execute(ctx context.Context, a action.Action) error
	ExecuteAll(ctx context.Context, actions []action.Action) error
}

// TimerFunc is invoked on the scheduler when an armed timer fires.
type TimerFunc func(ctx context.Context, t action.ArmTimer)

// ArmedFunc receives the handle of a timer as soon as it is scheduled,
// so that its owner can stop it.
type ArmedFunc func(t action.ArmTimer, timer Timer)

// executor interprets and executes actions.
type executor struct {
	flows   FlowWriter
	sched   Scheduler
	onTimer TimerFunc
	onArmed ArmedFunc
}

// NewExecutor creates a new action executor. onTimer may be nil if
// no ArmTimer actions will be executed; onArmed may always be nil.
func NewExecutor(flows FlowWriter, sched Scheduler, onTimer TimerFunc, onArmed ArmedFunc) ActionExecutor {
	return &executor{
		flows:   flows,
		sched:   sched,
		onTimer: onTimer,
		onArmed: onArmed,
	}
}

// Execute runs a single action.
func (e *executor) Execute(ctx context.Context, a action.Action) error {
	switch a := a.(type) {
	case action.SetEntry:
		return e.flows.EntrySet(ctx, a.Entry)

	case action.DeleteEntry:
		return e.flows.EntryDel(ctx, a.Name)

	case action.ArmTimer:
		if e.sched == nil || e.onTimer == nil {
			return fmt.Errorf("arm timer for %s: no scheduler", a.Name)
		}
		// The timer outlives the caller's context.
		tctx := context.WithoutCancel(ctx)
		timer := e.sched.AfterFunc(a.After, func() { e.onTimer(tctx, a) })
		if e.onArmed != nil {
			e.onArmed(a, timer)
		}
		return nil

	default:
		return fmt.Errorf("unknown action type: %T", a)
	}
}

// ExecuteAll runs multiple actions, stopping on first error.
func (e *executor) ExecuteAll(ctx context.Context, actions []action.Action) error {
	for _, a := range actions {
		if err := e.Execute(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
