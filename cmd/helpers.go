package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/archive"
	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/cost"
	"github.com/sells-group/outreach-cli/internal/generate"
	"github.com/sells-group/outreach-cli/internal/prompt"
	"github.com/sells-group/outreach-cli/internal/ratelimit"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
	"github.com/sells-group/outreach-cli/pkg/perplexity"
)

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initStoreOptional opens the run-history store, degrading to nil when it is
// unavailable. Pipeline runs do not depend on run bookkeeping.
func initStoreOptional(ctx context.Context) store.Store {
	st, err := initStore(ctx)
	if err != nil {
		zap.L().Warn("run history store unavailable, continuing without it", zap.Error(err))
		return nil
	}
	return st
}

func newPromptBuilder(c *config.Config) (*prompt.Builder, error) {
	if c.Prompt.TemplatePath == "" {
		return prompt.NewBuilder(), nil
	}
	b, err := prompt.NewBuilderFromFile(c.Prompt.TemplatePath)
	if err != nil {
		return nil, eris.Wrapf(err, "load prompt template %s", c.Prompt.TemplatePath)
	}
	return b, nil
}

func floatPtr(f float64) *float64 { return &f }

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

// newGenerator wires the provider clients, limiter, prompts, archive and
// cost tracker into a Generator.
func newGenerator(c *config.Config, tracker *cost.Tracker) (*generate.Generator, error) {
	prompts, err := newPromptBuilder(c)
	if err != nil {
		return nil, err
	}

	perplexityClient := perplexity.NewClient(c.Perplexity.Key,
		perplexity.WithBaseURL(c.Perplexity.BaseURL),
		perplexity.WithModel(c.Perplexity.Model),
	)
	anthropicClient := anthropic.NewClient(c.Anthropic.Key,
		anthropic.WithModel(c.Anthropic.Model),
	)

	return generate.New(generate.Config{
		Perplexity: perplexityClient,
		Anthropic:  anthropicClient,
		Prompts:    prompts,
		Limiter:    ratelimit.New(c.Ceilings()),
		Tracker:    tracker,
		Archive:    archive.NewWriter(c.Archive.Dir),
		Rates:      c.Pricing,
		Research: generate.StageConfig{
			Model:     c.Perplexity.Model,
			MaxTokens: c.Perplexity.MaxTokens,
			Timeout:   secs(c.Perplexity.TimeoutSecs),
			Retry:     c.Retry.Research.Build(),
		},
		Email: generate.StageConfig{
			Model:       c.Anthropic.Model,
			MaxTokens:   c.Anthropic.MaxTokens,
			Temperature: floatPtr(c.Anthropic.Temperature),
			Timeout:     secs(c.Anthropic.TimeoutSecs),
			Retry:       c.Retry.Email.Build(),
		},
	}), nil
}
