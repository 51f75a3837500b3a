package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"reqcraft/internal/domain"
)

const (
	ServerName          = "reqcraft"
	GenerateTestCases   = "generate_test_cases"
	requirementsHeading = "## Requirements"
	testCasesHeading    = "## Test cases"
)

// Runner runs the two-round generation.
type Runner interface {
	Run(ctx context.Context, in domain.PipelineInput) (*domain.PipelineResult, error)
}

type Handlers struct {
	runner Runner
	log    *slog.Logger
}

// New builds an MCP server exposing the generation pipeline as a tool.
func New(runner Runner, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer(ServerName, version)
	RegisterTools(s, runner, log)

	return s
}

func RegisterTools(s *server.MCPServer, runner Runner, log *slog.Logger) *Handlers {
	h := &Handlers{runner: runner, log: log}

	s.AddTool(mcp.Tool{
		Name: GenerateTestCases,
		Description: "Derive product requirements from a requirements document (text or http(s) URL), " +
			"then generate test cases for them.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"requirements": map[string]any{
					"type":        "string",
					"description": "Requirements document text, or a URL to fetch it from",
				},
				"product_description": map[string]any{
					"type":        "string",
					"description": "Brief description of the product",
				},
				"user_description": map[string]any{
					"type":        "string",
					"description": "Who the product users are",
				},
				"include_requirements": map[string]any{
					"type":        "boolean",
					"description": "Also return the intermediate requirements (default: false)",
					"default":     false,
				},
			},
			Required: []string{"requirements"},
		},
	}, h.GenerateTestCases)

	return h
}

func (h *Handlers) GenerateTestCases(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	requirements, err := request.RequireString("requirements")
	if err != nil {
		return mcp.NewToolResultError("requirements argument is required and must be a string"), nil
	}

	in := domain.PipelineInput{
		ProductDescription: request.GetString("product_description", ""),
		UserDescription:    request.GetString("user_description", ""),
		Requirements:       requirements,
	}
	includeRequirements := request.GetBool("include_requirements", false)

	res, err := h.runner.Run(ctx, in)
	if err != nil {
		h.log.WarnContext(ctx, "Failed to generate test cases",
			"error", err,
			"tool", GenerateTestCases)
		return mcp.NewToolResultError(toolErrorMessage(err)), nil
	}

	return mcp.NewToolResultText(formatResult(res, includeRequirements)), nil
}

func formatResult(res *domain.PipelineResult, includeRequirements bool) string {
	if !includeRequirements {
		return res.TestCases
	}

	var b strings.Builder
	b.WriteString(requirementsHeading)
	b.WriteString("\n\n")
	b.WriteString(res.Requirements)
	b.WriteString("\n\n")
	b.WriteString(testCasesHeading)
	b.WriteString("\n\n")
	b.WriteString(res.TestCases)

	if skipped := len(res.SkippedRequirements) + len(res.SkippedTestCases); skipped > 0 {
		fmt.Fprintf(&b, "\n\n(%d chunk(s) failed and were left out)", skipped)
	}

	return b.String()
}

func toolErrorMessage(err error) string {
	var (
		fetchErr      *domain.FetchError
		completionErr *domain.CompletionError
	)

	switch {
	case errors.Is(err, domain.ErrEmptyInput):
		return "no text to work with: " + err.Error()
	case errors.As(err, &fetchErr):
		return fmt.Sprintf("could not fetch %s: %v", fetchErr.URL, fetchErr.Err)
	case errors.As(err, &completionErr):
		return fmt.Sprintf("language model call failed (%s): %v", completionErr.Kind, err)
	default:
		return "generation failed: " + err.Error()
	}
}
