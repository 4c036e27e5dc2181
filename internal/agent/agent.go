// Package agent runs the agent loop: a state machine over thinking, tool
// calling and reflecting, with every transition recorded to the trajectory
// before the loop moves on.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/agent-trajectory/internal/domain"
	"github.com/tjfontaine/agent-trajectory/internal/llm"
	"github.com/tjfontaine/agent-trajectory/internal/tools"
	"github.com/tjfontaine/agent-trajectory/internal/trajectory"
)

const defaultSystemPrompt = `You are a helpful agent that completes tasks using the tools available to you.

Work step by step. When the task is finished, call the task_done tool with a
short summary of the outcome. If a tool fails, read its error and adjust.`

// ChatClient is the model interface the loop drives.
type ChatClient interface {
	Chat(ctx context.Context, messages []llm.ChatMessage) (*domain.Response, error)
	Model() string
}

// Option configures the agent.
type Option func(*Agent)

// WithLogger sets the agent logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithSystemPrompt overrides the default system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		a.systemPrompt = prompt
	}
}

// WithParallelToolCalls controls whether multiple tool calls from one
// response run concurrently.
func WithParallelToolCalls(parallel bool) Option {
	return func(a *Agent) {
		a.parallelTools = parallel
	}
}

// Result is the outcome of one agent run.
type Result struct {
	Success       bool
	FinalResult   string
	Steps         int
	ExecutionTime time.Duration
	// TrajectoryTarget is where the trajectory document was written.
	TrajectoryTarget string
}

// Agent executes a task with an LLM and a tool set, recording the run as a
// trajectory.
type Agent struct {
	client   ChatClient
	executor *tools.Executor
	session  *trajectory.Session
	maxSteps int

	systemPrompt  string
	parallelTools bool
	logger        *slog.Logger
	tracer        trace.Tracer
}

// New creates an agent. The session must already be started; the agent
// finalizes it when Run returns.
func New(client ChatClient, executor *tools.Executor, session *trajectory.Session, maxSteps int, opts ...Option) *Agent {
	a := &Agent{
		client:       client,
		executor:     executor,
		session:      session,
		maxSteps:     maxSteps,
		systemPrompt: defaultSystemPrompt,
		logger:       slog.Default(),
		tracer:       otel.Tracer("agent"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes the task to completion, error, or budget exhaustion. The
// session is finalized on every return path, so the trajectory always has an
// end time once Run returns.
func (a *Agent) Run(ctx context.Context, task string) (*Result, error) {
	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "agent.run",
		trace.WithAttributes(
			attribute.String("agent.model", a.client.Model()),
			attribute.Int("agent.max_steps", a.maxSteps),
		))
	defer span.End()

	machine := NewMachine(a.session, a.maxSteps)
	conversation := []llm.ChatMessage{
		llm.SystemMessage(a.systemPrompt),
		llm.UserMessage(task),
	}

	result, runErr := a.loop(ctx, machine, conversation)
	result.Steps = machine.Step()
	result.ExecutionTime = time.Since(start)
	result.TrajectoryTarget = a.session.Target()

	if err := a.session.Finalize(ctx, result.Success, result.FinalResult, result.ExecutionTime); err != nil {
		if runErr != nil {
			return result, errors.Join(runErr, err)
		}
		return result, fmt.Errorf("finalize trajectory: %w", err)
	}

	a.logger.Info("agent run finished",
		"success", result.Success,
		"steps", result.Steps,
		"duration", result.ExecutionTime,
		"trajectory", result.TrajectoryTarget,
	)
	return result, runErr
}

func (a *Agent) loop(ctx context.Context, machine *Machine, conversation []llm.ChatMessage) (*Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return &Result{Success: false, FinalResult: "cancelled: " + err.Error()}, err
		}

		a.logger.Debug("agent step", "step", machine.Step(), "state", machine.State())

		resp, err := a.think(ctx, machine, conversation)
		if err != nil {
			return &Result{Success: false, FinalResult: err.Error()}, err
		}

		// No tool calls means the model is done talking.
		if len(resp.ToolCalls) == 0 {
			if err := machine.Apply(ctx, Transition{
				To:          domain.StepStateCompleted,
				LLMMessages: llm.Flatten(conversation),
				LLMResponse: resp,
			}); err != nil {
				return &Result{Success: false, FinalResult: err.Error()}, err
			}
			return &Result{Success: true, FinalResult: resp.Content}, nil
		}

		conversation = append(conversation, llm.AssistantMessage(resp))

		results, err := a.callTools(ctx, machine, resp.ToolCalls)
		if err != nil {
			return &Result{Success: false, FinalResult: err.Error()}, err
		}
		for _, res := range results {
			conversation = append(conversation, llm.ToolResultMessage(res))
		}

		if done, finalResult := taskDoneOutcome(resp.ToolCalls, results); done {
			reflection := "task_done called, finishing"
			if err := machine.Apply(ctx, Transition{
				To:         domain.StepStateCompleted,
				Reflection: &reflection,
			}); err != nil {
				return &Result{Success: false, FinalResult: err.Error()}, err
			}
			return &Result{Success: true, FinalResult: finalResult}, nil
		}

		reflection := summarizeResults(results)
		err = machine.Apply(ctx, Transition{
			To:         domain.StepStateThinking,
			Reflection: &reflection,
		})
		if errors.Is(err, ErrStepBudgetExceeded) {
			return &Result{
				Success:     false,
				FinalResult: fmt.Sprintf("exceeded step budget: max_steps=%d", a.maxSteps),
			}, err
		}
		if err != nil {
			return &Result{Success: false, FinalResult: err.Error()}, err
		}
	}
}

// think calls the model and records the transition out of thinking. Model
// failures are recorded as an error step so the trajectory shows why the run
// stopped.
func (a *Agent) think(ctx context.Context, machine *Machine, conversation []llm.ChatMessage) (*domain.Response, error) {
	ctx, span := a.tracer.Start(ctx, "agent.think",
		trace.WithAttributes(attribute.Int("agent.step", machine.Step())))
	defer span.End()

	resp, err := a.client.Chat(ctx, conversation)
	if err != nil {
		msg := err.Error()
		if applyErr := machine.Apply(ctx, Transition{
			To:          domain.StepStateError,
			LLMMessages: llm.Flatten(conversation),
			Error:       &msg,
		}); applyErr != nil {
			return nil, errors.Join(err, applyErr)
		}
		return nil, err
	}

	if len(resp.ToolCalls) > 0 {
		if err := machine.Apply(ctx, Transition{
			To:          domain.StepStateCallingTool,
			LLMMessages: llm.Flatten(conversation),
			LLMResponse: resp,
		}); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// callTools executes the requested calls and records the transition into
// reflecting together with both the calls and their results.
func (a *Agent) callTools(ctx context.Context, machine *Machine, calls []domain.ToolCall) ([]domain.ToolResult, error) {
	ctx, span := a.tracer.Start(ctx, "agent.call_tools",
		trace.WithAttributes(attribute.Int("agent.tool_calls", len(calls))))
	defer span.End()

	results := a.executor.ExecuteAll(ctx, calls, a.parallelTools)

	if err := machine.Apply(ctx, Transition{
		To:          domain.StepStateReflecting,
		ToolCalls:   calls,
		ToolResults: results,
	}); err != nil {
		return nil, err
	}
	return results, nil
}

// taskDoneOutcome reports whether a successful task_done call is among the
// results and returns its payload.
func taskDoneOutcome(calls []domain.ToolCall, results []domain.ToolResult) (bool, string) {
	for i, call := range calls {
		if call.Name != tools.TaskDoneName || i >= len(results) {
			continue
		}
		if res := results[i]; res.Success {
			if res.Result != nil {
				return true, *res.Result
			}
			return true, ""
		}
	}
	return false, ""
}

func summarizeResults(results []domain.ToolResult) string {
	var b strings.Builder
	for i, res := range results {
		if i > 0 {
			b.WriteString("; ")
		}
		if res.Success {
			fmt.Fprintf(&b, "%s succeeded", res.CallID)
		} else {
			fmt.Fprintf(&b, "%s failed", res.CallID)
		}
	}
	if b.Len() == 0 {
		return "no tool results"
	}
	return b.String()
}
