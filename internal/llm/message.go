// Package llm wraps the provider API clients behind one chat interface.
// Every exchange is recorded into the trajectory session as an interaction
// record before the response is returned to the agent loop.
package llm

import (
	"github.com/tjfontaine/agent-trajectory/internal/domain"
)

// ChatMessage is one turn of the agent's conversation. It is richer than
// the recorded domain.Message because providers need tool call ids and
// structured results on the wire; Flatten projects it down to the recorded
// shape.
type ChatMessage struct {
	Role    domain.Role
	Content string

	// ToolCalls is set on assistant turns that requested tools.
	ToolCalls []domain.ToolCall

	// ToolResult is set on tool turns carrying one call's outcome.
	ToolResult *domain.ToolResult
}

// SystemMessage builds a system turn.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: domain.RoleSystem, Content: content}
}

// UserMessage builds a user turn.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: domain.RoleUser, Content: content}
}

// AssistantMessage builds an assistant turn from a model response.
func AssistantMessage(resp *domain.Response) ChatMessage {
	return ChatMessage{
		Role:      domain.RoleAssistant,
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	}
}

// ToolResultMessage builds a tool turn for one result.
func ToolResultMessage(res domain.ToolResult) ChatMessage {
	return ChatMessage{
		Role:       domain.RoleTool,
		Content:    resultText(res),
		ToolResult: &res,
	}
}

// Flatten projects conversation turns to the recorded message shape.
func Flatten(msgs []ChatMessage) []domain.Message {
	out := make([]domain.Message, len(msgs))
	for i, m := range msgs {
		out[i] = domain.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

func resultText(res domain.ToolResult) string {
	if res.Success {
		if res.Result != nil {
			return *res.Result
		}
		return ""
	}
	if res.Error != nil {
		return *res.Error
	}
	return "tool execution failed"
}
