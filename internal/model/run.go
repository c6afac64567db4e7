package model

import "time"

// RunStatus represents the current state of a processing run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one recorded execution of the outreach pipeline over a source.
type Run struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final counters of a run.
type RunResult struct {
	Profiles    int     `json:"profiles"`
	Submitted   int     `json:"submitted"`
	Completed   int     `json:"completed"`
	Failed      int     `json:"failed"`
	Flushed     bool    `json:"flushed"`
	TotalTokens int     `json:"total_tokens"`
	TotalCost   float64 `json:"total_cost"`
	Error       string  `json:"error,omitempty"`
}
