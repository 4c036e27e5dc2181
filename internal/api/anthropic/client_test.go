package anthropic_test

import (
	"context"
	"errors"
	"testing"

	"github.com/tjfontaine/agent-trajectory/internal/api/anthropic"
	"github.com/tjfontaine/agent-trajectory/internal/testutil"
)

func TestCreateMessage(t *testing.T) {
	r := testutil.NewVCRRecorder(t, "messages")
	client := anthropic.NewClient("test-key", anthropic.WithHTTPClient(testutil.VCRHTTPClient(r)))

	resp, err := client.CreateMessage(context.Background(), &anthropic.MessagesRequest{
		Model:     "claude-3-5-sonnet-20241022",
		MaxTokens: 1024,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: []anthropic.ContentPart{{Type: "text", Text: "What is 2+2?"}},
		}},
	})
	if err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}

	if resp.Role != "assistant" || resp.StopReason != "end_turn" {
		t.Errorf("response = %+v", resp)
	}
	if len(resp.Content) != 1 || resp.Content[0].Text != "2+2 equals 4." {
		t.Errorf("content = %+v", resp.Content)
	}
	if resp.Usage.InputTokens != 14 || resp.Usage.OutputTokens != 9 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestParseErrorResponse(t *testing.T) {
	body := []byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	apiErr := anthropic.ParseErrorResponse(body, 529)
	if apiErr == nil {
		t.Fatal("ParseErrorResponse() = nil")
	}
	if apiErr.Type != "overloaded_error" || apiErr.StatusCode != 529 {
		t.Errorf("error = %+v", apiErr)
	}
	if !apiErr.Retryable() {
		t.Error("overloaded error should be retryable")
	}

	if got := anthropic.ParseErrorResponse([]byte("not json"), 500); got != nil {
		t.Errorf("ParseErrorResponse(garbage) = %v, want nil", got)
	}
}

func TestAPIErrorRetryable(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{400, false},
		{401, false},
		{429, true},
		{500, true},
		{529, true},
	}
	for _, tt := range tests {
		err := &anthropic.APIError{StatusCode: tt.code}
		if got := err.Retryable(); got != tt.want {
			t.Errorf("Retryable(%d) = %v, want %v", tt.code, got, tt.want)
		}
		var target *anthropic.APIError
		if !errors.As(error(err), &target) {
			t.Errorf("APIError should satisfy errors.As")
		}
	}
}
