package flowreprog

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyName is returned when a flow entry has no name.
	ErrEmptyName = errors.New("flow name is empty")

	// ErrReservedSuffix is returned when a caller-supplied flow name
	// ends with TempSuffix. Those names belong to the reprogrammer.
	ErrReservedSuffix = fmt.Errorf("flow name ends with reserved suffix %q", TempSuffix)

	// ErrZeroPriority is returned when a caller-supplied flow entry
	// has priority 0.
	ErrZeroPriority = errors.New("flow priority must be at least 1")

	// ErrPriorityOverflow is returned when an in-place update needs a
	// temporary entry at priority+1 but the entry is already at
	// MaxPriority.
	ErrPriorityOverflow = fmt.Errorf("priority %d leaves no room for a temporary entry", MaxPriority)
)

// ErrFlowNotFound is returned when a named flow entry is not configured
// in the flow table.
type ErrFlowNotFound struct {
	Name string
}

func (e ErrFlowNotFound) Error() string {
	return fmt.Sprintf("flow %q does not exist", e.Name)
}

// InvalidEntryError reports a flow entry that cannot be submitted.
type InvalidEntryError struct {
	Name string
	Err  error
}

func (e *InvalidEntryError) Error() string {
	return fmt.Sprintf("invalid flow entry %q: %v", e.Name, e.Err)
}

func (e *InvalidEntryError) Unwrap() error {
	return e.Err
}
