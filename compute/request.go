package compute

import (
	"fmt"
	"time"

	"github.com/frobware/go-flowreprog"
)

// Phase is the position of a tracked flow in the reprogramming
// protocol. Flows that are absent or being installed for the first
// time are not tracked and have no phase.
type Phase int

const (
	// PhaseTempPending: the temporary entry has been submitted; the old
	// real entry still carries traffic.
	PhaseTempPending Phase = iota + 1
	// PhaseRealPending: the temporary entry is programmed and carries
	// traffic; the desired entry has been submitted under the real name.
	PhaseRealPending
	// PhaseCleanup: the real entry is programmed; deletion of the
	// temporary entry has been issued.
	PhaseCleanup
)

func (p Phase) String() string {
	switch p {
	case PhaseTempPending:
		return "temp-pending"
	case PhaseRealPending:
		return "real-pending"
	case PhaseCleanup:
		return "cleanup"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(b []byte) error {
	for c := PhaseTempPending; c <= PhaseCleanup; c++ {
		if c.String() == string(b) {
			*p = c
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// Await identifies the flow-table operation the current phase is
// waiting on: the Ordinal-th SetEntry issued for Name. Ordinal is zero
// when the phase waits for a deletion.
type Await struct {
	Name    string `json:"name" yaml:"name"`
	Ordinal uint64 `json:"ordinal,omitempty" yaml:"ordinal,omitempty"`
}

// Request is the tracking record for one flow being reprogrammed.
type Request struct {
	Desired flowreprog.Entry `json:"desired" yaml:"desired"`
	Phase   Phase            `json:"phase" yaml:"phase"`

	// Generation is bumped every time the caller changes Desired while
	// the request is in flight. Applied is the generation most recently
	// submitted to the flow table.
	Generation uint64 `json:"generation" yaml:"generation"`
	Applied    uint64 `json:"applied" yaml:"applied"`

	// Step is bumped on every transition and correlates timers.
	Step  uint64 `json:"step" yaml:"step"`
	Await Await  `json:"await" yaml:"await"`

	OpID    string    `json:"op_id" yaml:"op_id"`
	Started time.Time `json:"started" yaml:"started"`
}

// Name returns the real flow name the request is tracked under.
func (r *Request) Name() string {
	return r.Desired.Name
}

// TempName returns the temporary entry name for the request.
func (r *Request) TempName() string {
	return flowreprog.TempName(r.Desired.Name)
}

// Stale reports whether the caller changed Desired after it was last
// submitted.
func (r *Request) Stale() bool {
	return r.Applied < r.Generation
}

// Clone returns a deep copy of r.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	c.Desired = r.Desired.Clone()
	return &c
}

// OutcomeKind classifies how a tracked request left the protocol.
type OutcomeKind int

const (
	OutcomeNone OutcomeKind = iota
	// OutcomeCompleted: desired entry live, temporary entry removed,
	// no traffic gap.
	OutcomeCompleted
	// OutcomeFellBack: the disruptive delete-then-set path was used.
	OutcomeFellBack
	// OutcomeAborted: a third party deleted the real entry.
	OutcomeAborted
	// OutcomeTimedOut: an awaited operation never completed.
	OutcomeTimedOut
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNone:
		return "none"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFellBack:
		return "fell-back"
	case OutcomeAborted:
		return "aborted"
	case OutcomeTimedOut:
		return "timed-out"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Cause explains a fallback.
type Cause string

const (
	CauseRejected Cause = "rejected"
	CauseOverflow Cause = "priority-overflow"
	CauseTimeout  Cause = "timeout"
)

// Outcome reports the end of a tracked request.
type Outcome struct {
	Kind    OutcomeKind
	Name    string
	Phase   Phase
	Cause   Cause
	Desired flowreprog.Entry
	OpID    string
	Started time.Time
}
