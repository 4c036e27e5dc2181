package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/agent-trajectory/internal/api/anthropic"
	"github.com/tjfontaine/agent-trajectory/internal/api/openai"
	"github.com/tjfontaine/agent-trajectory/internal/config"
	"github.com/tjfontaine/agent-trajectory/internal/domain"
	"github.com/tjfontaine/agent-trajectory/internal/tokens"
	"github.com/tjfontaine/agent-trajectory/internal/tools"
	"github.com/tjfontaine/agent-trajectory/internal/trajectory"
)

const defaultRequestTimeout = 120 * time.Second

// retryable is implemented by API errors that are safe to retry.
type retryable interface {
	Retryable() bool
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client for the underlying API clients.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTokenRegistry sets the token counter registry used to backfill usage
// when a provider reports none.
func WithTokenRegistry(reg *tokens.Registry) Option {
	return func(c *Client) {
		c.tokens = reg
	}
}

// Client sends chat requests to one configured provider and records each
// interaction on the trajectory session.
type Client struct {
	provider domain.Provider
	params   config.ModelParameters
	session  *trajectory.Session
	tools    []tools.Tool

	httpClient *http.Client
	anthropic  *anthropic.Client
	openai     *openai.Client
	tokens     *tokens.Registry
	logger     *slog.Logger
}

// NewClient builds a client for the given provider. Every provider except
// anthropic speaks the chat completions dialect.
func NewClient(provider domain.Provider, params config.ModelParameters, session *trajectory.Session, ts []tools.Tool, opts ...Option) (*Client, error) {
	c := &Client{
		provider: provider,
		params:   params,
		session:  session,
		tools:    ts,
		tokens:   tokens.NewRegistry(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout:   defaultRequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	switch provider {
	case domain.ProviderAnthropic:
		aopts := []anthropic.ClientOption{anthropic.WithHTTPClient(c.httpClient)}
		if params.BaseURL != "" {
			aopts = append(aopts, anthropic.WithBaseURL(params.BaseURL))
		}
		if params.APIVersion != "" {
			aopts = append(aopts, anthropic.WithVersion(params.APIVersion))
		}
		c.anthropic = anthropic.NewClient(params.APIKey, aopts...)

	case domain.ProviderOpenAI, domain.ProviderAzure, domain.ProviderOllama, domain.ProviderOpenRouter, domain.ProviderOther:
		oopts := []openai.ClientOption{openai.WithHTTPClient(c.httpClient)}
		if params.BaseURL != "" {
			oopts = append(oopts, openai.WithBaseURL(params.BaseURL))
		}
		if provider == domain.ProviderAzure {
			if params.BaseURL == "" {
				return nil, fmt.Errorf("azure provider requires a base_url")
			}
			version := params.APIVersion
			if version == "" {
				version = "2024-03-01-preview"
			}
			oopts = append(oopts, openai.WithAzureAPIVersion(version))
		}
		c.openai = openai.NewClient(params.APIKey, oopts...)

	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}

	return c, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.params.Model }

// Chat sends the conversation to the model, retrying transient failures, and
// records the interaction on the trajectory before returning the response.
// A recording failure fails the call even when the model answered.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage) (*domain.Response, error) {
	start := time.Now()

	resp, err := c.complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	c.fillUsage(messages, resp)

	rec := domain.InteractionRecord{
		Timestamp:      start,
		Provider:       c.provider,
		Model:          c.params.Model,
		InputMessages:  Flatten(messages),
		Response:       *resp,
		ToolsAvailable: tools.Names(c.tools),
	}
	if err := c.session.RecordInteraction(ctx, rec); err != nil {
		return nil, fmt.Errorf("record interaction: %w", err)
	}

	c.logger.Debug("llm interaction",
		"provider", c.provider,
		"model", c.params.Model,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"tool_calls", len(resp.ToolCalls),
		"duration", time.Since(start),
	)
	return resp, nil
}

// complete runs one request with retries. Backoff doubles from one second and
// honors context cancellation.
func (c *Client) complete(ctx context.Context, messages []ChatMessage) (*domain.Response, error) {
	maxRetries := c.params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		resp, err := c.completeOnce(ctx, messages)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var r retryable
		if !errors.As(err, &r) || !r.Retryable() {
			return nil, err
		}
		if attempt == maxRetries {
			break
		}

		c.logger.Warn("retrying llm request",
			"provider", c.provider,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("llm request failed after %d attempts: %w", maxRetries, lastErr)
}

func (c *Client) completeOnce(ctx context.Context, messages []ChatMessage) (*domain.Response, error) {
	if c.anthropic != nil {
		system, wire := toAnthropic(messages)
		req := &anthropic.MessagesRequest{
			Model:     c.params.Model,
			Messages:  wire,
			MaxTokens: c.params.MaxTokens,
			System:    system,
			Tools:     anthropicTools(c.tools),
		}
		if c.params.Temperature > 0 {
			req.Temperature = &c.params.Temperature
		}
		if c.params.TopP > 0 {
			req.TopP = &c.params.TopP
		}
		if c.params.TopK > 0 {
			req.TopK = &c.params.TopK
		}
		resp, err := c.anthropic.CreateMessage(ctx, req)
		if err != nil {
			return nil, err
		}
		return fromAnthropic(resp), nil
	}

	req := &openai.ChatCompletionRequest{
		Model:     c.params.Model,
		Messages:  toOpenAI(messages),
		MaxTokens: c.params.MaxTokens,
		Tools:     openAITools(c.tools),
	}
	if c.params.Temperature > 0 {
		req.Temperature = &c.params.Temperature
	}
	if c.params.TopP > 0 {
		req.TopP = &c.params.TopP
	}
	if len(c.tools) > 0 && !c.params.ParallelToolCalls {
		parallel := false
		req.ParallelToolCalls = &parallel
	}
	resp, err := c.openai.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	return fromOpenAI(resp), nil
}

// fillUsage estimates token counts when the provider reports none. Local
// servers routinely omit usage.
func (c *Client) fillUsage(messages []ChatMessage, resp *domain.Response) {
	if resp.Usage.InputTokens > 0 || resp.Usage.OutputTokens > 0 {
		return
	}
	resp.Usage.InputTokens = c.tokens.EstimateMessages(c.params.Model, Flatten(messages))
	resp.Usage.OutputTokens = c.tokens.EstimateText(c.params.Model, resp.Content)
}
