package main

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"reqcraft/internal/mcpserver"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start an MCP server for LLM agents",
		Long: `Start an MCP (Model Context Protocol) server on stdio.

LLM agents can call the generate_test_cases tool to run the same pipeline as
the web form. Logs go to stderr so stdout stays reserved for the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, opts.log)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			s := mcpserver.New(a.pipeline, version, opts.log)

			opts.log.InfoContext(ctx, "MCP server is started",
				"transport", "stdio")

			if err = server.ServeStdio(s); err != nil {
				return fmt.Errorf("serve stdio: %w", err)
			}

			return nil
		},
	}
}
