package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tjfontaine/agent-trajectory/internal/domain"
	"github.com/tjfontaine/agent-trajectory/internal/trajectory"
)

// ErrStepBudgetExceeded is returned when a continuation transition would
// exceed the session's step budget. The machine has already been forced into
// the error terminal state when this is returned.
var ErrStepBudgetExceeded = errors.New("step budget exceeded")

// InvalidTransitionError reports an edge not present in the step state
// machine.
type InvalidTransitionError struct {
	From domain.StepState
	To   domain.StepState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid step transition %s -> %s", e.From, e.To)
}

// Transition describes one step state machine edge together with the
// evidence that justified it. The record written for the transition carries
// the destination state and this evidence.
type Transition struct {
	To domain.StepState

	// LLMMessages and LLMResponse are set for transitions out of thinking.
	LLMMessages []domain.Message
	LLMResponse *domain.Response

	// ToolCalls and ToolResults are set for calling_tool -> reflecting;
	// calls are repeated alongside their results so every result resolves
	// within its own step record.
	ToolCalls   []domain.ToolCall
	ToolResults []domain.ToolResult

	// Reflection is set for transitions out of reflecting.
	Reflection *string

	// Error is set only for transitions into the error state.
	Error *string
}

var validEdges = map[domain.StepState][]domain.StepState{
	domain.StepStateThinking:    {domain.StepStateCallingTool, domain.StepStateCompleted, domain.StepStateError},
	domain.StepStateCallingTool: {domain.StepStateReflecting, domain.StepStateError},
	domain.StepStateReflecting:  {domain.StepStateThinking, domain.StepStateCompleted},
}

func edgeAllowed(from, to domain.StepState) bool {
	for _, next := range validEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Machine drives an agent step through its states. Every accepted transition
// writes exactly one step record through the session before the machine
// advances, so a crash or storage failure can never leave the machine ahead
// of the persisted trajectory.
type Machine struct {
	session *trajectory.Session

	state domain.StepState
	// step counts agent decision rounds against the budget; it starts at 1
	// and increments on each reflecting -> thinking continuation.
	step     int
	maxSteps int
}

// NewMachine creates a machine in the thinking state. maxSteps <= 0 means
// no budget.
func NewMachine(session *trajectory.Session, maxSteps int) *Machine {
	return &Machine{
		session:  session,
		state:    domain.StepStateThinking,
		step:     1,
		maxSteps: maxSteps,
	}
}

// State returns the machine's current state.
func (m *Machine) State() domain.StepState { return m.state }

// Step returns the current decision round, 1-based.
func (m *Machine) Step() int { return m.step }

// Apply validates and performs one transition. The step record is written
// durably before the machine advances; if the write fails the machine stays
// in its current state and the storage error is returned.
//
// A reflecting -> thinking continuation beyond the step budget is refused:
// the machine records a budget-exceeded error step, enters the error
// terminal state, and returns ErrStepBudgetExceeded.
func (m *Machine) Apply(ctx context.Context, tr Transition) error {
	if m.state.Terminal() {
		return domain.ErrTerminalState
	}
	if !edgeAllowed(m.state, tr.To) {
		return &InvalidTransitionError{From: m.state, To: tr.To}
	}

	if m.continuationExceedsBudget(tr) {
		msg := fmt.Sprintf("exceeded step budget: max_steps=%d", m.maxSteps)
		rec := m.record(Transition{To: domain.StepStateError, Error: &msg})
		if err := m.session.RecordStep(ctx, rec); err != nil {
			return err
		}
		m.state = domain.StepStateError
		return ErrStepBudgetExceeded
	}

	rec := m.record(tr)
	if err := m.session.RecordStep(ctx, rec); err != nil {
		return err
	}

	if m.state == domain.StepStateReflecting && tr.To == domain.StepStateThinking {
		m.step++
	}
	m.state = tr.To
	return nil
}

func (m *Machine) continuationExceedsBudget(tr Transition) bool {
	if m.maxSteps <= 0 {
		return false
	}
	return m.state == domain.StepStateReflecting &&
		tr.To == domain.StepStateThinking &&
		m.step+1 > m.maxSteps
}

func (m *Machine) record(tr Transition) domain.StepRecord {
	return domain.StepRecord{
		StepNumber:  m.session.NextStepNumber(),
		Timestamp:   time.Now().UTC(),
		State:       tr.To,
		LLMMessages: tr.LLMMessages,
		LLMResponse: tr.LLMResponse,
		ToolCalls:   tr.ToolCalls,
		ToolResults: tr.ToolResults,
		Reflection:  tr.Reflection,
		Error:       tr.Error,
	}
}
