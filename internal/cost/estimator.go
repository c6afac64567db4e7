package cost

import (
	"github.com/sells-group/outreach-cli/internal/model"
)

// ModelRate holds per-model pricing: USD per million tokens plus a flat
// per-request surcharge for providers that bill per query.
type ModelRate struct {
	Input      float64 `yaml:"input" mapstructure:"input"`
	Output     float64 `yaml:"output" mapstructure:"output"`
	PerRequest float64 `yaml:"per_request" mapstructure:"per_request"`
}

// Cost prices one call at this rate.
func (r ModelRate) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1e6*r.Input + float64(outputTokens)/1e6*r.Output + r.PerRequest
}

// Rates holds per-provider pricing configuration.
type Rates struct {
	Research ModelRate `yaml:"research" mapstructure:"research"`
	Email    ModelRate `yaml:"email" mapstructure:"email"`
}

// DefaultRates returns the default pricing rates for the two stages.
func DefaultRates() Rates {
	return Rates{
		// Perplexity sonar: $1/MTok in and out, $5 per 1000 requests.
		Research: ModelRate{Input: 1.00, Output: 1.00, PerRequest: 0.005},
		// Anthropic haiku-class pricing.
		Email: ModelRate{Input: 0.80, Output: 4.00, PerRequest: 0},
	}
}

// Output-token ratios relative to the prompt, observed from typical
// responses: research answers run ~3x the prompt, emails ~0.5x.
const (
	researchOutputRatio = 3.0
	emailOutputRatio    = 0.5
)

// Fallback prompt-token guesses when the prompt cannot be built.
const (
	researchBaseTokens = 1000
	emailBaseTokens    = 300
)

// StageEstimate is the projected usage and spend for one stage of one
// profile.
type StageEstimate struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost"`
}

// ProfileEstimate is the projected spend for one profile, covering only the
// stages that still need to run.
type ProfileEstimate struct {
	Profile  string         `json:"profile"`
	Research *StageEstimate `json:"research,omitempty"`
	Email    *StageEstimate `json:"email,omitempty"`
	TotalUSD float64        `json:"total"`
}

// BatchEstimate rolls up projected spend across a batch.
type BatchEstimate struct {
	Profiles      int               `json:"profiles"`
	ResearchCalls int               `json:"research_calls"`
	EmailCalls    int               `json:"email_calls"`
	TotalTokens   int               `json:"total_tokens"`
	TotalUSD      float64           `json:"total_cost"`
	Breakdown     []ProfileEstimate `json:"breakdown"`
}

// PromptSizer reports the approximate prompt token count for a stage.
// Implemented by the prompt builder; a rough chars/4 heuristic is fine here
// since estimates are advisory.
type PromptSizer interface {
	PromptTokens(p model.Profile, stage string) int
}

// Estimator projects spend for a batch before any provider is called.
type Estimator struct {
	rates Rates
	sizer PromptSizer

	researchMaxTokens int
	emailMaxTokens    int
}

// NewEstimator creates an estimator with the given rates and prompt sizer.
// Max-token caps bound the projected output cost the same way the real
// calls are bounded.
func NewEstimator(rates Rates, sizer PromptSizer, researchMaxTokens, emailMaxTokens int) *Estimator {
	return &Estimator{
		rates:             rates,
		sizer:             sizer,
		researchMaxTokens: researchMaxTokens,
		emailMaxTokens:    emailMaxTokens,
	}
}

// EstimateProfile projects the cost of processing one profile. Stages whose
// output field is already populated cost nothing; an email estimate is
// included when the draft is empty, even if research has not run yet,
// because a successful research call will spawn the email task.
func (e *Estimator) EstimateProfile(p model.Profile) ProfileEstimate {
	est := ProfileEstimate{Profile: p.Name()}

	if !p.HasResearch() {
		se := e.stageEstimate(p, "research")
		est.Research = &se
		est.TotalUSD += se.CostUSD
	}

	if !p.HasDraft() {
		se := e.stageEstimate(p, "email")
		est.Email = &se
		est.TotalUSD += se.CostUSD
	}

	return est
}

// EstimateBatch projects the cost of processing every profile in the batch.
func (e *Estimator) EstimateBatch(profiles []model.Profile) BatchEstimate {
	batch := BatchEstimate{Profiles: len(profiles)}
	for _, p := range profiles {
		pe := e.EstimateProfile(p)
		if pe.Research != nil {
			batch.ResearchCalls++
			batch.TotalTokens += pe.Research.InputTokens + pe.Research.OutputTokens
		}
		if pe.Email != nil {
			batch.EmailCalls++
			batch.TotalTokens += pe.Email.InputTokens + pe.Email.OutputTokens
		}
		batch.TotalUSD += pe.TotalUSD
		batch.Breakdown = append(batch.Breakdown, pe)
	}
	return batch
}

func (e *Estimator) stageEstimate(p model.Profile, stage string) StageEstimate {
	var rate ModelRate
	var ratio float64
	var base, maxOut int

	switch stage {
	case "research":
		rate, ratio, base, maxOut = e.rates.Research, researchOutputRatio, researchBaseTokens, e.researchMaxTokens
	default:
		rate, ratio, base, maxOut = e.rates.Email, emailOutputRatio, emailBaseTokens, e.emailMaxTokens
	}

	in := base
	if e.sizer != nil {
		if n := e.sizer.PromptTokens(p, stage); n > 0 {
			in = n
		}
	}

	out := int(float64(in) * ratio)
	if maxOut > 0 && out > maxOut {
		out = maxOut
	}

	return StageEstimate{InputTokens: in, OutputTokens: out, CostUSD: rate.Cost(in, out)}
}
