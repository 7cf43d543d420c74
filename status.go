package flowreprog

import (
	"fmt"
	"strings"
)

// Status is the hardware programming state reported for a flow entry.
type Status int

const (
	StatusUnknown Status = iota
	// StatusCreated means the entry was created or modified in hardware.
	StatusCreated
	// StatusDeleted means the entry was removed from hardware.
	StatusDeleted
	// StatusRejected means the entry could not be programmed.
	StatusRejected
)

var statusNames = map[Status]string{
	StatusUnknown:  "unknown",
	StatusCreated:  "created",
	StatusDeleted:  "deleted",
	StatusRejected: "rejected",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	for k, v := range statusNames {
		if strings.EqualFold(v, string(b)) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown flow status %q", b)
}

// RejectedReason explains why an entry was not programmed. It is only
// meaningful while the entry's status is StatusRejected.
type RejectedReason int

const (
	RejectedBadMatch RejectedReason = iota
	RejectedBadAction
	RejectedHWTableFull
	RejectedOther
	RejectedActionsUnsupported
	RejectedTimeoutNotSupported
)

func (r RejectedReason) String() string {
	switch r {
	case RejectedBadMatch:
		return "bad-match"
	case RejectedBadAction:
		return "bad-action"
	case RejectedHWTableFull:
		return "hw-table-full"
	case RejectedOther:
		return "other"
	case RejectedActionsUnsupported:
		return "actions-unsupported"
	case RejectedTimeoutNotSupported:
		return "timeout-not-supported"
	default:
		return fmt.Sprintf("RejectedReason(%d)", int(r))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r RejectedReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RejectedReason) UnmarshalText(b []byte) error {
	for c := RejectedBadMatch; c <= RejectedTimeoutNotSupported; c++ {
		if strings.EqualFold(c.String(), string(b)) {
			*r = c
			return nil
		}
	}
	return fmt.Errorf("unknown rejected reason %q", b)
}

// Counters are the hit counters of a programmed entry.
type Counters struct {
	Packets uint64 `json:"packets" yaml:"packets"`
	Bytes   uint64 `json:"bytes" yaml:"bytes"`
}
