package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const defaultBashTimeout = 120 * time.Second

// BashTool runs shell commands. Each command runs in a new shell; no state
// persists across calls.
type BashTool struct {
	timeout time.Duration
}

// NewBashTool creates a bash tool with the given per-command timeout;
// zero means the default.
func NewBashTool(timeout time.Duration) *BashTool {
	if timeout <= 0 {
		timeout = defaultBashTimeout
	}
	return &BashTool{timeout: timeout}
}

func (t *BashTool) Name() string { return "bash" }

func (t *BashTool) Description() string {
	return strings.TrimSpace(`Run commands in a bash shell.
* Each command is run in a new, separate shell. State is NOT persistent across commands.
* To inspect a particular line range of a file, e.g. lines 10-25, try 'sed -n 10,25p /path/to/the/file'.
* Avoid commands that may produce a very large amount of output.`)
}

func (t *BashTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The bash command to run.",
			},
		},
		"required": []string{"command"},
	}
}

// Execute runs the command, returning combined trimmed stdout; stderr and a
// non-zero exit status are reported as the error.
func (t *BashTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	command, ok := stringArg(args, "command")
	if !ok || command == "" {
		return "", fmt.Errorf("no command provided for the bash tool")
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := strings.TrimSpace(stdout.String())
	if err != nil {
		errText := strings.TrimSpace(stderr.String())
		if errText == "" {
			errText = err.Error()
		}
		return out, fmt.Errorf("%s", errText)
	}
	return out, nil
}
