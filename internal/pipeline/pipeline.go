package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reqcraft/internal/chunker"
	"reqcraft/internal/dispatcher"
	"reqcraft/internal/domain"
	"reqcraft/internal/segmenter"
)

const DefaultChunkSize = 500

// Acquirer resolves raw user input into plain requirement text.
type Acquirer interface {
	Acquire(ctx context.Context, input string) (string, error)
}

type Config struct {
	ChunkSize int
	Params    domain.GenerationParams
	Prompts   Prompts
}

type Pipeline struct {
	acquirer   Acquirer
	dispatcher *dispatcher.Dispatcher
	chunkSize  int
	params     domain.GenerationParams
	prompts    Prompts
	log        *slog.Logger
}

func New(
	acquirer Acquirer,
	d *dispatcher.Dispatcher,
	cfg Config,
	log *slog.Logger,
) *Pipeline {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	prompts := cfg.Prompts
	if prompts.Requirements == nil || prompts.TestCases == nil {
		prompts = DefaultPrompts()
	}

	return &Pipeline{
		acquirer:   acquirer,
		dispatcher: d,
		chunkSize:  chunkSize,
		params:     cfg.Params,
		prompts:    prompts,
		log:        log,
	}
}

// Run derives requirements from the input, then test cases from those
// requirements. The second round starts only after the first has joined.
func (p *Pipeline) Run(ctx context.Context, in domain.PipelineInput) (*domain.PipelineResult, error) {
	start := time.Now()

	if strings.TrimSpace(in.Requirements) == "" {
		return nil, &domain.EmptyInputError{Stage: "requirements"}
	}

	text, err := p.acquirer.Acquire(ctx, in.Requirements)
	if err != nil {
		return nil, fmt.Errorf("acquire requirements: %w", err)
	}

	data := PromptData{
		ProductDescription: strings.TrimSpace(in.ProductDescription),
		UserDescription:    strings.TrimSpace(in.UserDescription),
	}

	requirements, skippedRequirements, err := p.Summarize(ctx, text, p.prompts.requirementsFunc(data))
	if err != nil {
		return nil, fmt.Errorf("summarize requirements: %w", err)
	}

	testCases, skippedTestCases, err := p.Summarize(ctx, requirements, p.prompts.testCasesFunc(data))
	if err != nil {
		return nil, fmt.Errorf("summarize test cases: %w", err)
	}

	p.log.InfoContext(ctx, "Pipeline is completed",
		"acquiredLen", len(text),
		"requirementsLen", len(requirements),
		"testCasesLen", len(testCases),
		"skippedRequirements", skippedRequirements,
		"skippedTestCases", skippedTestCases,
		"elapsedSeconds", time.Since(start).Seconds())

	return &domain.PipelineResult{
		Requirements:        requirements,
		TestCases:           testCases,
		SkippedRequirements: skippedRequirements,
		SkippedTestCases:    skippedTestCases,
	}, nil
}

// Summarize chunks text, completes every chunk concurrently and joins the
// successful completions in chunk order. It returns the skipped chunk indices.
func (p *Pipeline) Summarize(
	ctx context.Context,
	text string,
	prompt PromptFunc,
) (string, []int, error) {
	sentences, err := segmenter.Segment(text)
	if err != nil {
		return "", nil, fmt.Errorf("segment text: %w", err)
	}

	chunks := chunker.NonEmpty(chunker.Chunk(sentences, p.chunkSize))
	if len(chunks) == 0 {
		return "", nil, &domain.EmptyInputError{Stage: "segment"}
	}

	requests := make([]domain.CompletionRequest, 0, len(chunks))
	for i, c := range chunks {
		rendered, renderErr := prompt(c.Text())
		if renderErr != nil {
			return "", nil, fmt.Errorf("render prompt (chunkIndex = %d): %w", i, renderErr)
		}

		requests = append(requests, domain.CompletionRequest{
			Index:  i,
			Prompt: rendered,
			Params: p.params,
		})
	}

	results := p.dispatcher.Dispatch(ctx, requests)

	if err = ctx.Err(); err != nil {
		return "", nil, fmt.Errorf("dispatch chunks: %w", err)
	}

	joined, skipped, err := dispatcher.Join(results)
	if err != nil {
		return "", skipped, fmt.Errorf("join completions: %w", err)
	}

	if len(skipped) > 0 {
		p.log.WarnContext(ctx, "Some chunks are skipped",
			"skipped", skipped,
			"chunkCount", len(chunks))
	}

	return joined, skipped, nil
}
