package tools

import (
	"context"
)

// TaskDoneName is the name the completion-signal tool registers under.
const TaskDoneName = "task_done"

// TaskDoneTool lets the model signal that the task is finished. The agent
// loop watches for a call to this tool and closes the trajectory with the
// provided result.
type TaskDoneTool struct{}

// NewTaskDoneTool creates the completion-signal tool.
func NewTaskDoneTool() *TaskDoneTool { return &TaskDoneTool{} }

func (t *TaskDoneTool) Name() string { return TaskDoneName }

func (t *TaskDoneTool) Description() string {
	return "Signal that the task is complete. Call this with a short summary of the result once nothing remains to do."
}

func (t *TaskDoneTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"result": map[string]any{
				"type":        "string",
				"description": "Short summary of the task outcome.",
			},
		},
		"required": []string{"result"},
	}
}

func (t *TaskDoneTool) Execute(_ context.Context, args map[string]any) (string, error) {
	result, ok := stringArg(args, "result")
	if !ok {
		return "task completed", nil
	}
	return result, nil
}
