// Package generate dispatches one profile stage to its provider, with
// admission control, retries, cost tracking and response archival.
package generate

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/archive"
	"github.com/sells-group/outreach-cli/internal/cost"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/prompt"
	"github.com/sells-group/outreach-cli/internal/ratelimit"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/internal/schedule"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
	"github.com/sells-group/outreach-cli/pkg/perplexity"
)

// Stage call defaults.
const (
	defaultResearchMaxTokens = 2048
	defaultEmailMaxTokens    = 1024
	defaultCallTimeout       = 120 * time.Second
)

// StageConfig holds the per-stage call parameters.
type StageConfig struct {
	// Model overrides the client's default model when non-empty.
	Model string

	// MaxTokens caps the completion length.
	MaxTokens int

	// Temperature is passed through when non-nil.
	Temperature *float64

	// Timeout bounds each individual attempt, not the whole retry loop.
	Timeout time.Duration

	// Retry is the stage's retry policy, including the rate-limit penalty.
	Retry resilience.RetryConfig
}

// Config wires a Generator's collaborators.
type Config struct {
	Perplexity perplexity.Client
	Anthropic  anthropic.Client
	Prompts    *prompt.Builder
	Limiter    *ratelimit.Limiter
	Tracker    *cost.Tracker
	Archive    *archive.Writer
	Rates      cost.Rates

	Research StageConfig
	Email    StageConfig
}

// Generator produces field content for one stage of one profile.
// Implements schedule.Generator.
type Generator struct {
	cfg Config
}

// New creates a Generator, filling unset stage parameters with defaults.
func New(cfg Config) *Generator {
	if cfg.Prompts == nil {
		cfg.Prompts = prompt.NewBuilder()
	}
	if cfg.Research.MaxTokens <= 0 {
		cfg.Research.MaxTokens = defaultResearchMaxTokens
	}
	if cfg.Email.MaxTokens <= 0 {
		cfg.Email.MaxTokens = defaultEmailMaxTokens
	}
	if cfg.Research.Timeout <= 0 {
		cfg.Research.Timeout = defaultCallTimeout
	}
	if cfg.Email.Timeout <= 0 {
		cfg.Email.Timeout = defaultCallTimeout
	}
	if cfg.Research.Retry.MaxAttempts == 0 {
		cfg.Research.Retry = resilience.DefaultRetryConfig()
		cfg.Research.Retry.RateLimitPenalty = 10 * time.Second
	}
	if cfg.Email.Retry.MaxAttempts == 0 {
		cfg.Email.Retry = resilience.DefaultRetryConfig()
		cfg.Email.Retry.MaxAttempts = 5
		cfg.Email.Retry.RateLimitPenalty = 5 * time.Second
	}
	return &Generator{cfg: cfg}
}

// Generate produces the content for one stage of one profile. It acquires
// an admission slot for the stage's provider, then runs the provider call
// under the stage's retry policy. Cost is tracked and the raw response
// archived only when a response was actually received.
func (g *Generator) Generate(ctx context.Context, p model.Profile, stage schedule.Stage) (string, error) {
	provider := schedule.ProviderForStage(stage)
	if g.cfg.Limiter != nil {
		if err := g.cfg.Limiter.Acquire(ctx, provider); err != nil {
			return "", eris.Wrapf(err, "generate: admission for %s", provider)
		}
	}

	if stage == schedule.StageEmail {
		return g.generateEmail(ctx, p)
	}
	return g.generateResearch(ctx, p)
}

func (g *Generator) generateResearch(ctx context.Context, p model.Profile) (string, error) {
	sc := g.cfg.Research
	promptText := g.cfg.Prompts.Research(p)

	retry := sc.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("perplexity", "research")
	}

	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
		callCtx, cancel := context.WithTimeout(ctx, sc.Timeout)
		defer cancel()
		return g.cfg.Perplexity.ChatCompletion(callCtx, perplexity.ChatCompletionRequest{
			Model:       sc.Model,
			Messages:    []perplexity.Message{{Role: "user", Content: promptText}},
			MaxTokens:   &sc.MaxTokens,
			Temperature: sc.Temperature,
		})
	})
	if err != nil {
		return "", eris.Wrapf(err, "generate: research for %s", p.Name())
	}

	g.record("perplexity", p.Name(), resp,
		resp.Usage.PromptTokens, resp.Usage.CompletionTokens,
		g.cfg.Rates.Research.Cost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens))

	content := resp.Content()
	if content == "" {
		return "", eris.Errorf("generate: empty research response for %s", p.Name())
	}
	return content, nil
}

func (g *Generator) generateEmail(ctx context.Context, p model.Profile) (string, error) {
	sc := g.cfg.Email
	promptText, err := g.cfg.Prompts.Email(p)
	if err != nil {
		return "", err
	}

	retry := sc.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("anthropic", "email")
	}

	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		callCtx, cancel := context.WithTimeout(ctx, sc.Timeout)
		defer cancel()
		return g.cfg.Anthropic.CreateMessage(callCtx, anthropic.MessageRequest{
			Model:       sc.Model,
			MaxTokens:   int64(sc.MaxTokens),
			Messages:    []anthropic.Message{{Role: "user", Content: promptText}},
			Temperature: sc.Temperature,
		})
	})
	if err != nil {
		return "", eris.Wrapf(err, "generate: email for %s", p.Name())
	}

	g.record("anthropic", p.Name(), resp,
		int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens),
		g.cfg.Rates.Email.Cost(int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)))

	content := resp.Text()
	if content == "" {
		return "", eris.Errorf("generate: empty email response for %s", p.Name())
	}
	return content, nil
}

// record updates the cost ledger and archives the raw response. Archive
// failures are logged, never fatal.
func (g *Generator) record(provider, name string, payload any, promptTokens, completionTokens int, costUSD float64) {
	if g.cfg.Tracker != nil {
		g.cfg.Tracker.Track(provider, promptTokens, completionTokens, costUSD)
	}
	if g.cfg.Archive != nil {
		if err := g.cfg.Archive.Save(provider, name, payload); err != nil {
			zap.L().Warn("archive write failed",
				zap.String("provider", provider),
				zap.String("record", name),
				zap.Error(err),
			)
		}
	}
}
