package domain

import (
	"errors"
	"fmt"
)

// ErrUseAfterFinalize is returned when a record or append operation is
// attempted on a finalized session or document. It signals a programming
// error in the caller, not a recoverable condition.
var ErrUseAfterFinalize = errors.New("trajectory already finalized")

// ErrTerminalState is returned when a state transition is attempted after
// the step state machine entered completed or error.
var ErrTerminalState = errors.New("step state machine is in a terminal state")

// StorageError wraps a failed durable write. Losing the durability guarantee
// must be visible to the caller, so storage failures are never swallowed.
type StorageError struct {
	Op   string // operation that failed, e.g. "write", "open", "rename"
	Path string // target location, file path or DSN
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("trajectory storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// StepNumberConflictError reports a duplicate or out-of-order step number.
type StepNumberConflictError struct {
	Got  int
	Want int
}

func (e *StepNumberConflictError) Error() string {
	return fmt.Sprintf("step number conflict: got %d, want %d", e.Got, e.Want)
}

// OrphanToolResultError reports a tool result whose call_id has no matching
// tool call in the same step.
type OrphanToolResultError struct {
	CallID     string
	StepNumber int
}

func (e *OrphanToolResultError) Error() string {
	return fmt.Sprintf("step %d: tool result references unknown call_id %q", e.StepNumber, e.CallID)
}

// DuplicateCallIDError reports a call_id used twice within one interaction
// record.
type DuplicateCallIDError struct {
	CallID string
}

func (e *DuplicateCallIDError) Error() string {
	return fmt.Sprintf("duplicate tool call_id %q in interaction", e.CallID)
}

// InvalidStepStateError reports a step record carrying an unknown state or a
// field not allowed in its state.
type InvalidStepStateError struct {
	State  StepState
	Detail string
}

func (e *InvalidStepStateError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("invalid step state %q: %s", e.State, e.Detail)
	}
	return fmt.Sprintf("invalid step state %q", e.State)
}
