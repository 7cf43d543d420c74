// Package action contains reified effects - descriptions of what to do
// to the flow table without actually doing it. These are pure data
// structures.
package action

import (
	"fmt"
	"time"

	"github.com/frobware/go-flowreprog"
)

// Action represents an effect to be executed.
// Actions are data - they describe what to do, not how.
type Action interface {
	isAction()
}

// Flow-table actions

// SetEntry submits an entry for installation under its own name.
// The flow table answers with exactly one CREATED or REJECTED status.
type SetEntry struct {
	Entry flowreprog.Entry
}

func (SetEntry) isAction() {}

func (a SetEntry) String() string {
	return "set:" + a.Entry.Name
}

// DeleteEntry removes an entry by name. The flow table answers with a
// DELETED status, or nothing if the name is not configured.
type DeleteEntry struct {
	Name string
}

func (DeleteEntry) isAction() {}

func (a DeleteEntry) String() string {
	return "del:" + a.Name
}

// Scheduler actions

// ArmTimer requests a timeout callback for the tracked flow Name. OpID
// and Step identify the request and transition that armed it so that a
// timer outliving either can be recognised and ignored.
type ArmTimer struct {
	Name  string
	OpID  string
	Step  uint64
	After time.Duration
}

func (ArmTimer) isAction() {}

func (a ArmTimer) String() string {
	return fmt.Sprintf("timer:%s#%d", a.Name, a.Step)
}
