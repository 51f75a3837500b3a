package completion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"reqcraft/internal/domain"

	"github.com/openai/openai-go/v3"
)

type capturedRequest struct {
	Model               string  `json:"model"`
	Temperature         float64 `json:"temperature"`
	TopP                float64 `json:"top_p"`
	PresencePenalty     float64 `json:"presence_penalty"`
	MaxCompletionTokens int64   `json:"max_completion_tokens"`
	Messages            []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newTestOpenAIClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return c
}

func TestOpenAIClientSendsGenerationParams(t *testing.T) {
	var got capturedRequest

	c := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-3.5-turbo",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  REQ-1 login  "}}]}`)
	})

	text, err := c.Complete(context.Background(), "derive requirements", DefaultParams(1500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if text != "REQ-1 login" {
		t.Fatalf("unexpected text: %q", text)
	}

	if got.Model != string(defaultOpenAIModel) {
		t.Fatalf("unexpected model: %q", got.Model)
	}
	if got.Temperature != 0.1 || got.TopP != 1 || got.PresencePenalty != 1 {
		t.Fatalf("unexpected sampling params: %+v", got)
	}
	if got.MaxCompletionTokens != 1500 {
		t.Fatalf("unexpected max tokens: %d", got.MaxCompletionTokens)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != "derive requirements" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
}

func TestOpenAIClientClassifiesAuthFailure(t *testing.T) {
	c := newTestOpenAIClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	})

	_, err := c.Complete(context.Background(), "prompt", DefaultParams(10))

	var ce *domain.CompletionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompletionError, got %v", err)
	}
	if ce.Kind != domain.CompletionErrorAuth {
		t.Fatalf("expected auth kind, got %s", ce.Kind)
	}
}

func TestOpenAIClientRejectsEmptyPrompt(t *testing.T) {
	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = c.Complete(context.Background(), "  ", DefaultParams(10))

	var ce *domain.CompletionError
	if !errors.As(err, &ce) || ce.Kind != domain.CompletionErrorMalformed {
		t.Fatalf("expected malformed CompletionError, got %v", err)
	}
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{}); err == nil {
		t.Fatalf("expected error for missing API key")
	}
}

func TestChatCompletionTextMissingChoices(t *testing.T) {
	_, err := chatCompletionText(&openai.ChatCompletion{})

	var ce *domain.CompletionError
	if !errors.As(err, &ce) || ce.Kind != domain.CompletionErrorMalformed {
		t.Fatalf("expected malformed CompletionError, got %v", err)
	}
}

func TestChatCompletionTextBlankContent(t *testing.T) {
	resp := &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Content: "   "},
		}},
	}

	if _, err := chatCompletionText(resp); err == nil {
		t.Fatalf("expected error for blank content")
	}
}

func TestClassifyOpenAIErrorCanceled(t *testing.T) {
	err := classifyOpenAIError(context.Canceled)

	var ce *domain.CompletionError
	if !errors.As(err, &ce) || ce.Kind != domain.CompletionErrorCanceled {
		t.Fatalf("expected canceled CompletionError, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected error to wrap context.Canceled")
	}
}
