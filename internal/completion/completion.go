package completion

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"

	"reqcraft/internal/domain"
)

// Completer turns a single prompt into completion text.
type Completer interface {
	Complete(ctx context.Context, prompt string, params domain.GenerationParams) (string, error)
}

// DefaultParams favours low-variance, list-like output.
func DefaultParams(maxOutputWords int64) domain.GenerationParams {
	return domain.GenerationParams{
		Temperature:      0.1,
		MaxOutputWords:   maxOutputWords,
		TopP:             1,
		FrequencyPenalty: 0,
		PresencePenalty:  1,
	}
}

func validatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return &domain.CompletionError{
			Kind: domain.CompletionErrorMalformed,
			Err:  errors.New("prompt is empty"),
		}
	}

	return nil
}

func contextError(err error) *domain.CompletionError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &domain.CompletionError{Kind: domain.CompletionErrorCanceled, Err: err}
	}

	return nil
}

// statusErrorKind maps a provider HTTP status to a failure kind. ok is false
// for statuses that do not identify the failure.
func statusErrorKind(status int) (domain.CompletionErrorKind, bool) {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.CompletionErrorAuth, true
	case http.StatusTooManyRequests, http.StatusPaymentRequired:
		return domain.CompletionErrorQuota, true
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.CompletionErrorMalformed, true
	default:
		return "", false
	}
}

// clampInt32 saturates n into the int32 range the Gemini API accepts.
func clampInt32(n int64) int32 {
	switch {
	case n > math.MaxInt32:
		return math.MaxInt32
	case n < 0:
		return 0
	default:
		return int32(n)
	}
}
