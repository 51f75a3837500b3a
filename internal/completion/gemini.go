package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reqcraft/internal/domain"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// GeminiClient calls the Gemini GenerateContent API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}

	return &GeminiClient{client: client, model: model}, nil
}

func (c *GeminiClient) Complete(
	ctx context.Context,
	prompt string,
	params domain.GenerationParams,
) (string, error) {
	if err := validatePrompt(prompt); err != nil {
		return "", err
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(params.Temperature)),
		TopP:             genai.Ptr(float32(params.TopP)),
		MaxOutputTokens:  clampInt32(params.MaxOutputWords),
		FrequencyPenalty: genai.Ptr(float32(params.FrequencyPenalty)),
		PresencePenalty:  genai.Ptr(float32(params.PresencePenalty)),
	})
	if err != nil {
		return "", classifyGeminiError(err)
	}

	return geminiText(resp)
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", &domain.CompletionError{
			Kind: domain.CompletionErrorMalformed,
			Err:  errors.New("candidates are missing"),
		}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &domain.CompletionError{
			Kind: domain.CompletionErrorMalformed,
			Err:  fmt.Errorf("candidate text is missing (finishReason = %s)", resp.Candidates[0].FinishReason),
		}
	}

	return text, nil
}

func classifyGeminiError(err error) error {
	if ce := contextError(err); ce != nil {
		return ce
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if kind, ok := statusErrorKind(apiErr.Code); ok {
			return &domain.CompletionError{Kind: kind, Err: err}
		}
	}

	return &domain.CompletionError{Kind: domain.CompletionErrorNetwork, Err: fmt.Errorf("generate content: %w", err)}
}
