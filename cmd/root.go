package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	logLevel string
	log      *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "reqcraft",
		Short: "Generate requirements and test cases with an LLM",
		Long: `reqcraft turns a requirements document into test cases.

The document (literal text or an http(s) URL) is split into sentences, packed
into chunks and sent to the language model concurrently. The joined output of
that first round is chunked again to produce test cases.

Settings come from the environment and an optional .env file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := parseLogLevel(opts.logLevel)
			if err != nil {
				return err
			}

			// stdout carries results for generate and the protocol for mcp.
			opts.log = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			if cmd.Name() == "serve" {
				opts.log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
			}
			slog.SetDefault(opts.log)

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newGenerateCmd(opts),
		newMCPCmd(opts),
	)

	return cmd
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("parse log level: %w", err)
	}

	return level, nil
}
