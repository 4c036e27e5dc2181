package llm

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/tjfontaine/agent-trajectory/internal/api/anthropic"
	"github.com/tjfontaine/agent-trajectory/internal/api/openai"
	"github.com/tjfontaine/agent-trajectory/internal/domain"
	"github.com/tjfontaine/agent-trajectory/internal/tools"
)

// toAnthropic converts conversation turns to Anthropic wire format. System
// turns are lifted into the request's system field; tool results become
// user-role tool_result blocks per the Messages API contract.
func toAnthropic(msgs []ChatMessage) (system string, out []anthropic.Message) {
	for _, m := range msgs {
		switch {
		case m.Role == domain.RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += m.Content

		case m.ToolResult != nil:
			res := m.ToolResult
			out = append(out, anthropic.Message{
				Role: "user",
				Content: []anthropic.ContentPart{{
					Type:      "tool_result",
					ToolUseID: res.CallID,
					Content:   resultText(*res),
					IsError:   !res.Success,
				}},
			})

		case m.Role == domain.RoleAssistant && len(m.ToolCalls) > 0:
			var parts []anthropic.ContentPart
			if m.Content != "" {
				parts = append(parts, anthropic.ContentPart{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, anthropic.ContentPart{
					Type:  "tool_use",
					ID:    tc.CallID,
					Name:  tc.Name,
					Input: tc.Arguments,
				})
			}
			out = append(out, anthropic.Message{Role: "assistant", Content: parts})

		default:
			out = append(out, anthropic.Message{
				Role:    string(m.Role),
				Content: []anthropic.ContentPart{{Type: "text", Text: m.Content}},
			})
		}
	}
	return system, out
}

func anthropicTools(ts []tools.Tool) []anthropic.Tool {
	out := make([]anthropic.Tool, len(ts))
	for i, t := range ts {
		out[i] = anthropic.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		}
	}
	return out
}

// fromAnthropic converts a Messages API response to the domain shape.
func fromAnthropic(resp *anthropic.MessagesResponse) *domain.Response {
	out := &domain.Response{
		Model:        resp.Model,
		FinishReason: resp.StopReason,
		Usage: domain.Usage{
			InputTokens:              resp.Usage.InputTokens,
			OutputTokens:             resp.Usage.OutputTokens,
			CacheCreationInputTokens: resp.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     resp.Usage.CacheReadInputTokens,
		},
	}
	for _, part := range resp.Content {
		switch part.Type {
		case "text":
			out.Content += part.Text
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
				CallID:    part.ID,
				Name:      part.Name,
				Arguments: part.Input,
			})
		}
	}
	return out
}

// toOpenAI converts conversation turns to chat completion wire format.
func toOpenAI(msgs []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		switch {
		case m.ToolResult != nil:
			out = append(out, openai.ChatCompletionMessage{
				Role:       "tool",
				Content:    resultText(*m.ToolResult),
				ToolCallID: m.ToolResult.CallID,
			})

		case m.Role == domain.RoleAssistant && len(m.ToolCalls) > 0:
			msg := openai.ChatCompletionMessage{Role: "assistant", Content: m.Content}
			for _, tc := range m.ToolCalls {
				args, err := json.Marshal(tc.Arguments)
				if err != nil {
					args = []byte("{}")
				}
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.CallID,
					Type: "function",
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
			out = append(out, msg)

		default:
			out = append(out, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
		}
	}
	return out
}

func openAITools(ts []tools.Tool) []openai.Tool {
	out := make([]openai.Tool, len(ts))
	for i, t := range ts {
		out[i] = openai.Tool{
			Type: "function",
			Function: openai.FunctionTool{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.InputSchema(),
			},
		}
	}
	return out
}

// fromOpenAI converts a chat completion response to the domain shape.
func fromOpenAI(resp *openai.ChatCompletionResponse) *domain.Response {
	out := &domain.Response{Model: resp.Model}
	if resp.Usage != nil {
		out.Usage = domain.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
		if resp.Usage.PromptTokensDetails != nil {
			out.Usage.CacheReadInputTokens = resp.Usage.PromptTokensDetails.CachedTokens
		}
		if resp.Usage.CompletionDetails != nil && resp.Usage.CompletionDetails.ReasoningTokens > 0 {
			reasoning := resp.Usage.CompletionDetails.ReasoningTokens
			out.Usage.ReasoningTokens = &reasoning
		}
	}
	if len(resp.Choices) == 0 {
		return out
	}

	choice := resp.Choices[0]
	out.Content = choice.Message.Content
	out.FinishReason = choice.FinishReason
	for _, tc := range choice.Message.ToolCalls {
		call := domain.ToolCall{CallID: tc.ID, Name: tc.Function.Name}
		if call.CallID == "" {
			call.CallID = "call_" + uuid.New().String()
		}
		if tc.Function.Arguments != "" {
			var args map[string]any
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err == nil {
				call.Arguments = args
			}
		}
		out.ToolCalls = append(out.ToolCalls, call)
	}
	return out
}
