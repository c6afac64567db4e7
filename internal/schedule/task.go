// Package schedule derives the per-profile task set and runs it on a
// bounded worker pool with reactive follow-on tasks.
package schedule

import (
	"context"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Stage identifies a pipeline stage.
type Stage string

const (
	StageResearch Stage = "research"
	StageEmail    Stage = "email"
)

// Task is one unit of work: produce one field of one profile.
type Task struct {
	ProfileID int
	Stage     Stage
}

// FieldForStage returns the profile field a stage populates.
func FieldForStage(s Stage) string {
	if s == StageEmail {
		return model.FieldDraft
	}
	return model.FieldResearch
}

// ProviderForStage returns the provider name a stage dispatches to.
// Provider names key the rate limiter and the cost tracker.
func ProviderForStage(s Stage) string {
	if s == StageEmail {
		return "anthropic"
	}
	return "perplexity"
}

// Generator produces the content for one stage of one profile. The
// implementation owns rate limiting, retries, cost tracking and archival.
type Generator interface {
	Generate(ctx context.Context, p model.Profile, stage Stage) (string, error)
}

// Plan derives the initial task set from field emptiness. A profile with
// empty research gets a research task only; its email task is created
// reactively after the research succeeds. A profile with research but no
// draft gets an email task. Fully populated profiles get nothing.
// Planning the same profiles twice yields the same tasks.
func Plan(profiles []model.Profile) []Task {
	tasks := make([]Task, 0, len(profiles))
	for _, p := range profiles {
		switch {
		case !p.HasResearch():
			tasks = append(tasks, Task{ProfileID: p.ID, Stage: StageResearch})
		case !p.HasDraft():
			tasks = append(tasks, Task{ProfileID: p.ID, Stage: StageEmail})
		}
	}
	return tasks
}
