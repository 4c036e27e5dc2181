// Package domain defines the canonical data model for recorded agent
// trajectories: messages, model responses, tool calls and results, and the
// trajectory aggregate itself. These types are the wire format of the
// persisted trajectory document, so their JSON shape is load-bearing.
package domain

// Provider identifies a language-model backend.
type Provider string

const (
	ProviderAnthropic  Provider = "anthropic"
	ProviderOpenAI     Provider = "openai"
	ProviderAzure      Provider = "azure"
	ProviderOllama     Provider = "ollama"
	ProviderOpenRouter Provider = "openrouter"
	ProviderOther      Provider = "other"
)

// Valid reports whether p is a known provider value.
func (p Provider) Valid() bool {
	switch p {
	case ProviderAnthropic, ProviderOpenAI, ProviderAzure, ProviderOllama, ProviderOpenRouter, ProviderOther:
		return true
	}
	return false
}

// ParseProvider maps a provider name to its enum value, folding unknown
// names to ProviderOther so OpenAI-compatible third-party backends still
// record under a schema-valid value.
func ParseProvider(s string) Provider {
	p := Provider(s)
	if p.Valid() {
		return p
	}
	return ProviderOther
}

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single conversation message exchanged with a model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Usage contains token accounting reported by a provider for one exchange.
// Cache and reasoning token fields are provider-specific; ReasoningTokens is
// a pointer so absence is distinguishable from a reported zero.
type Usage struct {
	InputTokens              int  `json:"input_tokens"`
	OutputTokens             int  `json:"output_tokens"`
	CacheCreationInputTokens int  `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int  `json:"cache_read_input_tokens"`
	ReasoningTokens          *int `json:"reasoning_tokens,omitempty"`
}

// Add returns the element-wise sum of two usage reports.
func (u Usage) Add(other Usage) Usage {
	sum := Usage{
		InputTokens:              u.InputTokens + other.InputTokens,
		OutputTokens:             u.OutputTokens + other.OutputTokens,
		CacheCreationInputTokens: u.CacheCreationInputTokens + other.CacheCreationInputTokens,
		CacheReadInputTokens:     u.CacheReadInputTokens + other.CacheReadInputTokens,
	}
	if u.ReasoningTokens != nil || other.ReasoningTokens != nil {
		total := 0
		if u.ReasoningTokens != nil {
			total += *u.ReasoningTokens
		}
		if other.ReasoningTokens != nil {
			total += *other.ReasoningTokens
		}
		sum.ReasoningTokens = &total
	}
	return sum
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	CallID    string         `json:"call_id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolResult is the outcome of executing one tool call. Result and Error are
// pointers so an absent value never serializes as an empty string.
type ToolResult struct {
	CallID  string  `json:"call_id"`
	Success bool    `json:"success"`
	Result  *string `json:"result,omitempty"`
	Error   *string `json:"error,omitempty"`
}

// Response is the model's reply to one request.
type Response struct {
	Content      string     `json:"content"`
	Model        string     `json:"model"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Usage        Usage      `json:"usage"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
}
