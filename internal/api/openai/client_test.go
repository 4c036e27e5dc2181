package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func completionsHandler(t *testing.T, check func(*http.Request)) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		check(r)
		json.NewEncoder(w).Encode(ChatCompletionResponse{
			Model: "gpt-4o",
			Choices: []Choice{{
				Message:      ChatCompletionMessage{Role: "assistant", Content: "hi"},
				FinishReason: "stop",
			}},
		})
	}
}

func TestCreateChatCompletionBearerAuth(t *testing.T) {
	server := httptest.NewServer(completionsHandler(t, func(r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.RawQuery != "" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
	}))
	defer server.Close()

	client := NewClient("sk-test", WithBaseURL(server.URL))
	resp, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Model:    "gpt-4o",
		Messages: []ChatCompletionMessage{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("CreateChatCompletion() error = %v", err)
	}
	if resp.Choices[0].Message.Content != "hi" {
		t.Errorf("content = %q", resp.Choices[0].Message.Content)
	}
}

func TestCreateChatCompletionAzureAuth(t *testing.T) {
	server := httptest.NewServer(completionsHandler(t, func(r *http.Request) {
		if got := r.Header.Get("api-key"); got != "azure-key" {
			t.Errorf("api-key = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("Authorization header set in azure mode: %q", got)
		}
		if got := r.URL.Query().Get("api-version"); got != "2024-03-01-preview" {
			t.Errorf("api-version = %q", got)
		}
	}))
	defer server.Close()

	client := NewClient("azure-key",
		WithBaseURL(server.URL),
		WithAzureAPIVersion("2024-03-01-preview"),
	)
	if _, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Model:    "gpt-4o",
		Messages: []ChatCompletionMessage{{Role: "user", Content: "hello"}},
	}); err != nil {
		t.Fatalf("CreateChatCompletion() error = %v", err)
	}
}

func TestCreateChatCompletionErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"type": "server_error", "message": "try later"},
		})
	}))
	defer server.Close()

	client := NewClient("k", WithBaseURL(server.URL))
	_, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{Model: "gpt-4o"})
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error = %T %v, want *APIError", err, err)
	}
	if apiErr.StatusCode != 503 || !apiErr.Retryable() {
		t.Errorf("apiErr = %+v", apiErr)
	}
}
