package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"reqcraft/internal/database"
	"reqcraft/internal/scheduler"
	"reqcraft/internal/web"
)

const (
	shutdownTimeout   = 30 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the web form",
		Long: `Serve the web form on ADDR.

When DB_PATH is set, finished runs are stored in that SQLite database and
pruned on the RETENTION_SPEC cron schedule once older than RUN_RETENTION.
Without it nothing is persisted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	log := opts.log
	start := time.Now()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a, err := newApp(ctx, log)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	var store web.RunStore

	if dbPath := strings.TrimSpace(a.cfg.DBPath); dbPath != "" {
		db, dbErr := database.New(ctx, dbPath, log)
		if dbErr != nil {
			return fmt.Errorf("initialize db: %w", dbErr)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.ErrorContext(ctx, "Failed to close db",
					"error", err,
					"dbPath", dbPath)
			}
		}()
		log.InfoContext(ctx, "DB is initialized",
			"dbPath", dbPath)

		sched := scheduler.New(ctx, db, a.cfg.RetentionSpec, a.cfg.RunRetention, log)
		if err = sched.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
		log.InfoContext(ctx, "Scheduler is started",
			"spec", a.cfg.RetentionSpec,
			"retention", a.cfg.RunRetention.String(),
			"timezone", scheduler.Timezone)

		store = db
	} else {
		log.InfoContext(ctx, "DB_PATH is empty so runs are not stored",
			"envVar", "DB_PATH")
	}

	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           web.New(a.pipeline, store, a.cfg.RequestTimeout, log),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()
	log.InfoContext(ctx, "HTTP server is started",
		"addr", a.cfg.Addr)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		log.InfoContext(ctx, "Shutdown signal is received",
			"signal", sig.String())
	case err = <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer shutdownCancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		log.ErrorContext(ctx, "Failed to shut down HTTP server",
			"error", err)
	}
	cancel()

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())

	return nil
}
