package mcpserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"reqcraft/internal/domain"
)

type stubRunner struct {
	in  domain.PipelineInput
	res *domain.PipelineResult
	err error
}

func (s *stubRunner) Run(_ context.Context, in domain.PipelineInput) (*domain.PipelineResult, error) {
	s.in = in
	return s.res, s.err
}

func newHandlers(runner Runner) *Handlers {
	return &Handlers{runner: runner, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = GenerateTestCases
	req.Params.Arguments = args

	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()

	if len(res.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(res.Content))
	}

	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}

	return text.Text
}

func TestGenerateTestCases(t *testing.T) {
	runner := &stubRunner{res: &domain.PipelineResult{Requirements: "R1.", TestCases: "TC1."}}
	h := newHandlers(runner)

	res, err := h.GenerateTestCases(context.Background(), callRequest(map[string]any{
		"requirements":        "Users can log in.",
		"product_description": "Portal",
		"user_description":    "Admins",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	if got := resultText(t, res); got != "TC1." {
		t.Fatalf("unexpected text: %q", got)
	}

	want := domain.PipelineInput{
		ProductDescription: "Portal",
		UserDescription:    "Admins",
		Requirements:       "Users can log in.",
	}
	if runner.in != want {
		t.Fatalf("unexpected input: %+v", runner.in)
	}
}

func TestGenerateTestCasesIncludeRequirements(t *testing.T) {
	runner := &stubRunner{res: &domain.PipelineResult{
		Requirements:     "R1.",
		TestCases:        "TC1.",
		SkippedTestCases: []int{0},
	}}
	h := newHandlers(runner)

	res, err := h.GenerateTestCases(context.Background(), callRequest(map[string]any{
		"requirements":         "Users can log in.",
		"include_requirements": true,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := resultText(t, res)
	want := "## Requirements\n\nR1.\n\n## Test cases\n\nTC1.\n\n(1 chunk(s) failed and were left out)"
	if got != want {
		t.Fatalf("unexpected text:\n%s", got)
	}
}

func TestGenerateTestCasesMissingRequirements(t *testing.T) {
	runner := &stubRunner{}
	h := newHandlers(runner)

	res, err := h.GenerateTestCases(context.Background(), callRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.IsError {
		t.Fatalf("expected tool error")
	}
}

func TestGenerateTestCasesPipelineError(t *testing.T) {
	runner := &stubRunner{err: &domain.FetchError{URL: "https://example.com", Err: errors.New("status 503")}}
	h := newHandlers(runner)

	res, err := h.GenerateTestCases(context.Background(), callRequest(map[string]any{
		"requirements": "https://example.com",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.IsError {
		t.Fatalf("expected tool error")
	}
	if got := resultText(t, res); !strings.Contains(got, "could not fetch https://example.com") {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestNewRegistersTool(t *testing.T) {
	s := New(&stubRunner{}, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))

	tools := s.ListTools()
	if _, ok := tools[GenerateTestCases]; !ok {
		t.Fatalf("expected %s to be registered, got %v", GenerateTestCases, tools)
	}
}
