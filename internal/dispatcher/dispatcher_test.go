package dispatcher_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"reqcraft/internal/dispatcher"
	"reqcraft/internal/domain"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func requests(n int) []domain.CompletionRequest {
	reqs := make([]domain.CompletionRequest, n)
	for i := range reqs {
		reqs[i] = domain.CompletionRequest{Index: i, Prompt: fmt.Sprintf("chunk-%d", i)}
	}

	return reqs
}

// gatedCompleter releases completions in the order given by release.
type gatedCompleter struct {
	gates map[string]chan struct{}
}

func newGatedCompleter(n int) *gatedCompleter {
	g := &gatedCompleter{gates: make(map[string]chan struct{}, n)}
	for i := range n {
		g.gates[fmt.Sprintf("chunk-%d", i)] = make(chan struct{})
	}

	return g
}

func (g *gatedCompleter) Complete(ctx context.Context, prompt string, _ domain.GenerationParams) (string, error) {
	select {
	case <-g.gates[prompt]:
		return "out-" + prompt, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *gatedCompleter) release(order []int) {
	for _, i := range order {
		close(g.gates[fmt.Sprintf("chunk-%d", i)])
		time.Sleep(time.Millisecond)
	}
}

func TestDispatchOrdersByIndexRegardlessOfArrival(t *testing.T) {
	orders := [][]int{
		{0, 1, 2, 3},
		{3, 2, 1, 0},
		{2, 0, 3, 1},
		{1, 3, 0, 2},
	}

	want := "out-chunk-0 out-chunk-1 out-chunk-2 out-chunk-3"

	for _, order := range orders {
		g := newGatedCompleter(4)
		d := dispatcher.New(g, 4, discardLogger())

		go g.release(order)

		results := d.Dispatch(context.Background(), requests(4))

		got, skipped, err := dispatcher.Join(results)
		if err != nil {
			t.Fatalf("order %v: unexpected error: %v", order, err)
		}
		if len(skipped) != 0 {
			t.Fatalf("order %v: unexpected skipped: %v", order, skipped)
		}
		if got != want {
			t.Fatalf("order %v: got %q want %q", order, got, want)
		}
	}
}

type countingCompleter struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	calls    int
}

func (c *countingCompleter) Complete(_ context.Context, prompt string, _ domain.GenerationParams) (string, error) {
	c.mu.Lock()
	c.calls++
	c.inFlight++
	c.peak = max(c.peak, c.inFlight)
	c.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	c.mu.Lock()
	c.inFlight--
	c.mu.Unlock()

	return prompt, nil
}

func TestDispatchBoundsInFlightRequests(t *testing.T) {
	c := &countingCompleter{}
	d := dispatcher.New(c, 2, discardLogger())

	results := d.Dispatch(context.Background(), requests(12))

	if len(results) != 12 {
		t.Fatalf("expected 12 results, got %d", len(results))
	}
	if c.calls != 12 {
		t.Fatalf("expected 12 calls, got %d", c.calls)
	}
	if c.peak > 2 {
		t.Fatalf("expected at most 2 in flight, peak was %d", c.peak)
	}
}

type failingCompleter struct {
	fail map[int]bool
}

func (f *failingCompleter) Complete(_ context.Context, prompt string, _ domain.GenerationParams) (string, error) {
	var idx int
	if _, err := fmt.Sscanf(prompt, "chunk-%d", &idx); err != nil {
		return "", err
	}

	if f.fail[idx] {
		return "", &domain.CompletionError{Kind: domain.CompletionErrorQuota, Err: errors.New("quota exceeded")}
	}

	return strings.ToUpper(prompt), nil
}

func TestJoinSkipsFailedChunks(t *testing.T) {
	d := dispatcher.New(&failingCompleter{fail: map[int]bool{1: true, 3: true}}, 3, discardLogger())

	got, skipped, err := dispatcher.Join(d.Dispatch(context.Background(), requests(4)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "CHUNK-0 CHUNK-2" {
		t.Fatalf("unexpected joined text: %q", got)
	}

	if len(skipped) != 2 || skipped[0] != 1 || skipped[1] != 3 {
		t.Fatalf("unexpected skipped indices: %v", skipped)
	}
}

func TestJoinFailsWhenAllChunksFail(t *testing.T) {
	d := dispatcher.New(&failingCompleter{fail: map[int]bool{0: true, 1: true, 2: true}}, 3, discardLogger())

	got, skipped, err := dispatcher.Join(d.Dispatch(context.Background(), requests(3)))
	if err == nil {
		t.Fatalf("expected error when every chunk fails")
	}

	if got != "" {
		t.Fatalf("expected no text on total failure, got %q", got)
	}

	if len(skipped) != 3 {
		t.Fatalf("expected 3 skipped, got %v", skipped)
	}

	var ce *domain.CompletionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected joined error to carry CompletionError, got %v", err)
	}
}

func TestDispatchCanceledContext(t *testing.T) {
	g := newGatedCompleter(5)
	d := dispatcher.New(g, 2, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := d.Dispatch(ctx, requests(5))
	if len(results) != 5 {
		t.Fatalf("expected a result per request, got %d", len(results))
	}

	for i, r := range results {
		if r.Index != i {
			t.Fatalf("result %d has index %d", i, r.Index)
		}
		if !r.Failed() {
			t.Fatalf("expected result %d to fail after cancel", i)
		}
	}

	if _, _, err := dispatcher.Join(results); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDispatchNoRequests(t *testing.T) {
	d := dispatcher.New(&countingCompleter{}, 1, discardLogger())

	results := d.Dispatch(context.Background(), nil)
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}

	got, skipped, err := dispatcher.Join(results)
	if err != nil || got != "" || len(skipped) != 0 {
		t.Fatalf("unexpected join of nothing: %q %v %v", got, skipped, err)
	}
}
