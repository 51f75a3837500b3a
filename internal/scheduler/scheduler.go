package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	pruneRunsTimeout      = 5 * time.Minute
)

// RunStore is the part of the database the retention job needs.
type RunStore interface {
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Scheduler struct {
	ctx       context.Context
	cron      *cron.Cron
	store     RunStore
	spec      string
	retention time.Duration
	now       func() time.Time
	log       *slog.Logger
}

func New(
	ctx context.Context,
	store RunStore,
	spec string,
	retention time.Duration,
	log *slog.Logger,
) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:       ctx,
		cron:      c,
		store:     store,
		spec:      spec,
		retention: retention,
		now:       time.Now,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.pruneRuns); err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

// Stop halts the cron and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) pruneRuns() {
	ctx, cancel := context.WithTimeout(s.ctx, pruneRunsTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	if s.retention <= 0 {
		return
	}

	cutoff := s.now().Add(-s.retention)

	deleted, err := s.store.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to prune runs",
			"error", err,
			"cutoff", cutoff)
		return
	}

	s.log.InfoContext(ctx, "Pruned runs",
		"deleted", deleted,
		"cutoff", cutoff)
}
