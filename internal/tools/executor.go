package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tjfontaine/agent-trajectory/internal/domain"
)

// Executor resolves tool calls by name and produces results keyed by
// call_id. Unknown tools and execution failures become failed results
// rather than errors: the model sees the failure and can react to it.
type Executor struct {
	tools map[string]Tool
	names []string
}

// NewExecutor creates an executor over the given tools.
func NewExecutor(ts []Tool) *Executor {
	m := make(map[string]Tool, len(ts))
	names := make([]string, 0, len(ts))
	for _, t := range ts {
		m[t.Name()] = t
		names = append(names, t.Name())
	}
	sort.Strings(names)
	return &Executor{tools: m, names: names}
}

// Execute runs a single tool call.
func (e *Executor) Execute(ctx context.Context, call domain.ToolCall) domain.ToolResult {
	tool, ok := e.tools[call.Name]
	if !ok {
		msg := fmt.Sprintf("tool %q not found, available: %v", call.Name, e.names)
		return domain.ToolResult{CallID: call.CallID, Success: false, Error: &msg}
	}

	out, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		msg := err.Error()
		res := domain.ToolResult{CallID: call.CallID, Success: false, Error: &msg}
		if out != "" {
			res.Result = &out
		}
		return res
	}
	return domain.ToolResult{CallID: call.CallID, Success: true, Result: &out}
}

// ExecuteAll runs calls sequentially, or in parallel when requested, and
// returns results in call order.
func (e *Executor) ExecuteAll(ctx context.Context, calls []domain.ToolCall, parallel bool) []domain.ToolResult {
	results := make([]domain.ToolResult, len(calls))
	if !parallel || len(calls) < 2 {
		for i, call := range calls {
			results[i] = e.Execute(ctx, call)
		}
		return results
	}

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call domain.ToolCall) {
			defer wg.Done()
			results[i] = e.Execute(ctx, call)
		}(i, call)
	}
	wg.Wait()
	return results
}
