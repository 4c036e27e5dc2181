// Package tools defines the tool interface offered to the model and the
// executor that resolves the model's tool calls into results keyed by
// call_id.
package tools

import (
	"context"
)

// Tool is a capability the agent can offer to the model.
type Tool interface {
	// Name is the identifier the model uses to call the tool.
	Name() string

	// Description tells the model what the tool does.
	Description() string

	// InputSchema is the JSON schema of the tool's arguments.
	InputSchema() map[string]any

	// Execute runs the tool. A returned error marks the result failed; it
	// does not abort the step.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Names returns the tool names in declaration order.
func Names(ts []Tool) []string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Name()
	}
	return names
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
