package dispatcher

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"reqcraft/internal/completion"
	"reqcraft/internal/domain"

	"golang.org/x/sync/semaphore"
)

const DefaultMaxInFlight = 8

// Dispatcher fans completion requests out to a Completer. The in-flight
// limit is shared by every Dispatch call on the same Dispatcher.
type Dispatcher struct {
	completer completion.Completer
	sem       *semaphore.Weighted
	log       *slog.Logger
}

func New(c completion.Completer, maxInFlight int, log *slog.Logger) *Dispatcher {
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}

	return &Dispatcher{
		completer: c,
		sem:       semaphore.NewWeighted(int64(maxInFlight)),
		log:       log,
	}
}

// Dispatch waits for every request to finish and returns the results sorted
// by request index. Failures are reported in the result, never dropped.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	requests []domain.CompletionRequest,
) []domain.CompletionResult {
	resultCh := make(chan domain.CompletionResult, len(requests))
	var wg sync.WaitGroup

	for _, req := range requests {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			resultCh <- domain.CompletionResult{
				Index: req.Index,
				Err:   &domain.CompletionError{Kind: domain.CompletionErrorCanceled, Err: err},
			}
			continue
		}

		wg.Go(func() {
			defer d.sem.Release(1)

			resultCh <- d.complete(ctx, req)
		})
	}

	wg.Wait()
	close(resultCh)

	results := make([]domain.CompletionResult, 0, len(requests))
	for r := range resultCh {
		results = append(results, r)
	}

	slices.SortFunc(results, func(a, b domain.CompletionResult) int {
		return cmp.Compare(a.Index, b.Index)
	})

	return results
}

func (d *Dispatcher) complete(ctx context.Context, req domain.CompletionRequest) domain.CompletionResult {
	start := time.Now()

	text, err := d.completer.Complete(ctx, req.Prompt, req.Params)
	if err != nil {
		d.log.WarnContext(ctx, "Failed to complete chunk",
			"error", err,
			"chunkIndex", req.Index,
			"promptLen", len(req.Prompt),
			"elapsedSeconds", time.Since(start).Seconds())

		return domain.CompletionResult{Index: req.Index, Err: err}
	}

	d.log.DebugContext(ctx, "Chunk is completed",
		"chunkIndex", req.Index,
		"promptLen", len(req.Prompt),
		"completionLen", len(text),
		"elapsedSeconds", time.Since(start).Seconds())

	return domain.CompletionResult{Index: req.Index, Text: text}
}

// Join concatenates successful completions with a single space in result
// order. It fails only when every result failed; otherwise it returns the
// indices of the skipped results.
func Join(results []domain.CompletionResult) (string, []int, error) {
	var (
		parts   []string
		skipped []int
		errs    []error
	)

	for _, r := range results {
		if r.Failed() {
			skipped = append(skipped, r.Index)
			errs = append(errs, fmt.Errorf("chunk %d: %w", r.Index, r.Err))
			continue
		}

		parts = append(parts, r.Text)
	}

	if len(results) > 0 && len(parts) == 0 {
		return "", skipped, fmt.Errorf("all %d completions failed: %w", len(results), errors.Join(errs...))
	}

	return strings.Join(parts, " "), skipped, nil
}
