// Package tokens provides token counting for trajectory usage accounting.
// Backends that do not report usage (notably Ollama) get their interaction
// records filled with estimates from here.
package tokens

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/tjfontaine/agent-trajectory/internal/domain"
)

// Counter counts tokens in text for the models it supports.
type Counter interface {
	Count(text string) int
	SupportsModel(model string) bool
}

// ModelMatcher matches model names against prefix and exact patterns.
type ModelMatcher struct {
	prefixes []string
	exact    []string
}

// NewModelMatcher creates a matcher.
func NewModelMatcher(prefixes, exact []string) *ModelMatcher {
	return &ModelMatcher{prefixes: prefixes, exact: exact}
}

// Matches reports whether model matches any pattern.
func (m *ModelMatcher) Matches(model string) bool {
	for _, e := range m.exact {
		if model == e {
			return true
		}
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

// TiktokenCounter counts tokens with tiktoken encodings for OpenAI-family
// models.
type TiktokenCounter struct {
	matcher *ModelMatcher

	mu    sync.Mutex
	codec tokenizer.Codec
}

// NewTiktokenCounter creates a tiktoken-backed counter.
func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{
		matcher: NewModelMatcher(
			[]string{"gpt-", "o1", "o3", "o4", "text-embedding", "llama", "mistral", "qwen"},
			[]string{"davinci", "curie", "babbage", "ada"},
		),
	}
}

// Count returns the token count of text, falling back to a character
// estimate if the encoding cannot be loaded.
func (c *TiktokenCounter) Count(text string) int {
	codec, err := c.getCodec()
	if err != nil {
		return len(text) / 4
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return len(text) / 4
	}
	return len(ids)
}

// SupportsModel reports whether the counter covers model.
func (c *TiktokenCounter) SupportsModel(model string) bool {
	return c.matcher.Matches(strings.ToLower(model))
}

func (c *TiktokenCounter) getCodec() (tokenizer.Codec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.codec != nil {
		return c.codec, nil
	}
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, err
	}
	c.codec = codec
	return codec, nil
}

// Estimator is the character-ratio fallback for models no counter covers.
type Estimator struct {
	// CharsPerToken is the average characters per token.
	CharsPerToken float64
}

// NewEstimator creates an estimator with the default 4 chars/token ratio.
func NewEstimator() *Estimator {
	return &Estimator{CharsPerToken: 4.0}
}

// Count estimates the token count of text.
func (e *Estimator) Count(text string) int {
	return int(float64(len(text)) / e.CharsPerToken)
}

// SupportsModel always returns true; the estimator is the fallback.
func (e *Estimator) SupportsModel(string) bool { return true }

// Registry selects the best counter for a model.
type Registry struct {
	counters []Counter
	fallback Counter
}

// NewRegistry creates a registry with the tiktoken counter registered and
// the estimator as fallback.
func NewRegistry() *Registry {
	return &Registry{
		counters: []Counter{NewTiktokenCounter()},
		fallback: NewEstimator(),
	}
}

// CounterFor returns the counter covering model.
func (r *Registry) CounterFor(model string) Counter {
	for _, c := range r.counters {
		if c.SupportsModel(model) {
			return c
		}
	}
	return r.fallback
}

// EstimateMessages estimates the prompt token count of a message sequence,
// including a small per-message formatting overhead.
func (r *Registry) EstimateMessages(model string, msgs []domain.Message) int {
	counter := r.CounterFor(model)
	total := 0
	for _, msg := range msgs {
		total += counter.Count(msg.Content) + 4
	}
	return total
}

// EstimateText estimates the token count of one text block.
func (r *Registry) EstimateText(model, text string) int {
	return r.CounterFor(model).Count(text)
}
