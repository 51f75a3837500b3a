package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"reqcraft/internal/acquire"
	"reqcraft/internal/browser"
	"reqcraft/internal/completion"
	"reqcraft/internal/config"
	"reqcraft/internal/dispatcher"
	"reqcraft/internal/pipeline"
)

// app holds the components shared by every command.
type app struct {
	cfg      config.Config
	pipeline *pipeline.Pipeline
	renderer *browser.Renderer
	log      *slog.Logger
}

func newApp(ctx context.Context, log *slog.Logger) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err = cfg.Validate(true); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	completer, err := newCompleter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "Completion client is initialized",
		"provider", cfg.LLMProvider)

	promptOverrides, err := cfg.LoadPrompts()
	if err != nil {
		return nil, err
	}

	prompts, err := pipeline.ParsePrompts(promptOverrides.Requirements, promptOverrides.TestCases)
	if err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}

	a := &app{cfg: cfg, log: log}

	var renderer acquire.Renderer
	if cfg.BrowserEnabled {
		a.renderer = browser.New(browser.Config{
			Bin:               cfg.BrowserBin,
			NavigationTimeout: cfg.FetchTimeout,
		}, log)
		renderer = a.renderer
	}

	acquirer := acquire.New(acquire.Config{
		FetchTimeout:    cfg.FetchTimeout,
		CacheMaxEntries: cfg.FetchCacheSize,
		CacheTTL:        cfg.FetchCacheTTL,
	}, renderer, log)

	a.pipeline = pipeline.New(
		acquirer,
		dispatcher.New(completer, cfg.MaxInFlight, log),
		pipeline.Config{
			ChunkSize: cfg.ChunkSize,
			Params:    completion.DefaultParams(int64(cfg.ResponseSize)),
			Prompts:   prompts,
		},
		log,
	)

	return a, nil
}

func newCompleter(ctx context.Context, cfg config.Config) (completion.Completer, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		c, err := completion.NewGeminiClient(ctx, completion.GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("create Gemini client: %w", err)
		}

		return c, nil
	case config.ProviderOpenAI:
		c, err := completion.NewOpenAIClient(completion.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("create OpenAI client: %w", err)
		}

		return c, nil
	default:
		return nil, errors.New("unknown LLM provider: " + cfg.LLMProvider)
	}
}

func (a *app) Close(ctx context.Context) {
	if a.renderer == nil {
		return
	}

	if err := a.renderer.Close(); err != nil {
		a.log.ErrorContext(ctx, "Failed to close browser",
			"error", err)
	}
}
