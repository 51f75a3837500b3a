package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reqcraft/internal/domain"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const defaultOpenAIModel = openai.ChatModelGPT3_5Turbo

// OpenAIConfig contains configuration for the OpenAI-backed completer.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OpenAIClient calls OpenAI's Chat Completions API.
type OpenAIClient struct {
	client openai.Client
	model  openai.ChatModel
}

// NewOpenAIClient builds a new client instance.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	model := openai.ChatModel(strings.TrimSpace(cfg.Model))
	if model == "" {
		model = defaultOpenAIModel
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

// Complete sends prompt as a single user message.
func (c *OpenAIClient) Complete(
	ctx context.Context,
	prompt string,
	params domain.GenerationParams,
) (string, error) {
	if err := validatePrompt(prompt); err != nil {
		return "", err
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature:         openai.Float(params.Temperature),
		MaxCompletionTokens: openai.Int(params.MaxOutputWords),
		TopP:                openai.Float(params.TopP),
		FrequencyPenalty:    openai.Float(params.FrequencyPenalty),
		PresencePenalty:     openai.Float(params.PresencePenalty),
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}

	return chatCompletionText(resp)
}

func chatCompletionText(resp *openai.ChatCompletion) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", &domain.CompletionError{
			Kind: domain.CompletionErrorMalformed,
			Err:  errors.New("chat completion choices are missing"),
		}
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", &domain.CompletionError{
			Kind: domain.CompletionErrorMalformed,
			Err: fmt.Errorf("chat completion choice message content is missing (finishReason = %s)",
				resp.Choices[0].FinishReason),
		}
	}

	return text, nil
}

func classifyOpenAIError(err error) error {
	if ce := contextError(err); ce != nil {
		return ce
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if kind, ok := statusErrorKind(apiErr.StatusCode); ok {
			return &domain.CompletionError{Kind: kind, Err: err}
		}
	}

	return &domain.CompletionError{Kind: domain.CompletionErrorNetwork, Err: fmt.Errorf("do request: %w", err)}
}
