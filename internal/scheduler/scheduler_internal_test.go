package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeStore struct {
	cutoffs []time.Time
	err     error
}

func (f *fakeStore) DeleteRunsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return 3, f.err
}

func newTestScheduler(ctx context.Context, store RunStore, retention time.Duration) *Scheduler {
	s := New(ctx, store, "0 * * * *", retention, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestPruneRunsUsesRetention(t *testing.T) {
	store := &fakeStore{}
	s := newTestScheduler(context.Background(), store, 24*time.Hour)

	s.pruneRuns()

	if len(store.cutoffs) != 1 {
		t.Fatalf("expected one delete call, got %d", len(store.cutoffs))
	}
	want := time.Date(2026, 5, 9, 12, 0, 0, 0, time.UTC)
	if !store.cutoffs[0].Equal(want) {
		t.Fatalf("unexpected cutoff: got %s want %s", store.cutoffs[0], want)
	}
}

func TestPruneRunsDisabledRetention(t *testing.T) {
	store := &fakeStore{}
	s := newTestScheduler(context.Background(), store, 0)

	s.pruneRuns()

	if len(store.cutoffs) != 0 {
		t.Fatalf("expected no delete calls, got %d", len(store.cutoffs))
	}
}

func TestPruneRunsSkipsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &fakeStore{}
	s := newTestScheduler(ctx, store, time.Hour)

	s.pruneRuns()

	if len(store.cutoffs) != 0 {
		t.Fatalf("expected no delete calls after cancel, got %d", len(store.cutoffs))
	}
}

func TestPruneRunsStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	s := newTestScheduler(context.Background(), store, time.Hour)

	s.pruneRuns()

	if len(store.cutoffs) != 1 {
		t.Fatalf("expected one delete attempt, got %d", len(store.cutoffs))
	}
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	s := New(context.Background(), &fakeStore{}, "not a cron spec", time.Hour,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := s.Start(); err == nil {
		s.Stop()
		t.Fatalf("expected invalid spec to fail")
	}
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler(context.Background(), &fakeStore{}, time.Hour)

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Stop()
}
