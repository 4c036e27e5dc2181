package domain

import (
	"time"
)

// StepState is the state a step record was captured in. Transitions between
// states are owned by the agent state machine; the document only stores the
// resulting value.
type StepState string

const (
	StepStateThinking    StepState = "thinking"
	StepStateCallingTool StepState = "calling_tool"
	StepStateReflecting  StepState = "reflecting"
	StepStateCompleted   StepState = "completed"
	StepStateError       StepState = "error"
)

// Terminal reports whether s ends a step state machine.
func (s StepState) Terminal() bool {
	return s == StepStateCompleted || s == StepStateError
}

// Valid reports whether s is a known step state.
func (s StepState) Valid() bool {
	switch s {
	case StepStateThinking, StepStateCallingTool, StepStateReflecting, StepStateCompleted, StepStateError:
		return true
	}
	return false
}

// InteractionRecord is an immutable snapshot of one request/response
// exchange with a model backend.
type InteractionRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Provider  Provider  `json:"provider"`
	Model     string    `json:"model"`

	// InputMessages is the full prompt sent to the model, in order.
	InputMessages []Message `json:"input_messages"`

	// Response is the model's reply, including usage and any tool calls.
	Response Response `json:"response"`

	// ToolsAvailable names the tools offered to the model for this exchange.
	ToolsAvailable []string `json:"tools_available,omitempty"`
}

// Validate checks the record's internal invariants: call_ids referenced in
// the response's tool_calls must be unique within the record.
func (r *InteractionRecord) Validate() error {
	seen := make(map[string]struct{}, len(r.Response.ToolCalls))
	for _, tc := range r.Response.ToolCalls {
		if _, dup := seen[tc.CallID]; dup {
			return &DuplicateCallIDError{CallID: tc.CallID}
		}
		seen[tc.CallID] = struct{}{}
	}
	return nil
}

// StepRecord is an immutable-once-finalized snapshot of one agent execution
// step.
type StepRecord struct {
	StepNumber int       `json:"step_number"`
	Timestamp  time.Time `json:"timestamp"`
	State      StepState `json:"state"`

	LLMMessages []Message `json:"llm_messages,omitempty"`
	LLMResponse *Response `json:"llm_response,omitempty"`

	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`

	Reflection *string `json:"reflection,omitempty"`

	// Error is set only when State is the error terminal state.
	Error *string `json:"error,omitempty"`
}

// Validate checks the record's internal invariants before it is appended:
// the state must be known, every tool_result must reference a call_id from
// the same step's tool_calls, and error text is only allowed in the error
// state.
func (r *StepRecord) Validate() error {
	if r.StepNumber < 1 {
		return &StepNumberConflictError{Got: r.StepNumber, Want: 1}
	}
	if !r.State.Valid() {
		return &InvalidStepStateError{State: r.State}
	}
	if r.Error != nil && r.State != StepStateError {
		return &InvalidStepStateError{State: r.State, Detail: "error text outside error state"}
	}

	calls := make(map[string]struct{}, len(r.ToolCalls))
	for _, tc := range r.ToolCalls {
		calls[tc.CallID] = struct{}{}
	}
	for _, tr := range r.ToolResults {
		if _, ok := calls[tr.CallID]; !ok {
			return &OrphanToolResultError{CallID: tr.CallID, StepNumber: r.StepNumber}
		}
	}
	return nil
}

// TrajectoryDocument is the root aggregate of one task execution: task
// metadata, every model interaction, every agent step, and the final
// outcome. It is exclusively owned by the trajectory store and mutated only
// through append operations and one finalize.
type TrajectoryDocument struct {
	Task      string     `json:"task"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	Provider Provider `json:"provider"`
	Model    string   `json:"model"`
	MaxSteps int      `json:"max_steps"`

	LLMInteractions []InteractionRecord `json:"llm_interactions"`
	AgentSteps      []StepRecord        `json:"agent_steps"`

	Success       *bool          `json:"success,omitempty"`
	FinalResult   *string        `json:"final_result,omitempty"`
	ExecutionTime *time.Duration `json:"execution_time,omitempty"`
}

// NewTrajectoryDocument creates a document at task start with all summary
// fields unset.
func NewTrajectoryDocument(task string, provider Provider, model string, maxSteps int) *TrajectoryDocument {
	return &TrajectoryDocument{
		Task:            task,
		StartTime:       time.Now().UTC(),
		Provider:        provider,
		Model:           model,
		MaxSteps:        maxSteps,
		LLMInteractions: make([]InteractionRecord, 0, 8),
		AgentSteps:      make([]StepRecord, 0, 8),
	}
}

// Finalized reports whether the document's summary fields have been set.
func (d *TrajectoryDocument) Finalized() bool {
	return d.EndTime != nil
}
