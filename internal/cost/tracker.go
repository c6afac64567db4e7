// Package cost tracks and estimates spend across AI providers.
package cost

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ProviderTotals holds the additive counters for one provider.
type ProviderTotals struct {
	Calls   int     `json:"calls"`
	Tokens  int     `json:"tokens"`
	CostUSD float64 `json:"cost"`
}

// Summary is a point-in-time snapshot of tracked spend.
type Summary struct {
	Timestamp    time.Time                 `json:"timestamp"`
	TotalCostUSD float64                   `json:"total_cost"`
	Providers    map[string]ProviderTotals `json:"providers"`
}

// Tracker accumulates per-provider call, token, and cost counters. Counters
// are monotonically increasing until Reset. Updates arrive from concurrent
// workers, so every mutation is serialized behind the mutex. The tracker is
// a pure observer: nothing reads it for control flow.
type Tracker struct {
	mu        sync.Mutex
	providers map[string]ProviderTotals
	total     float64
}

// NewTracker creates an empty cost tracker.
func NewTracker() *Tracker {
	return &Tracker{providers: make(map[string]ProviderTotals)}
}

// Track records one completed provider call. Call it exactly once per call
// that actually produced a provider response; attempts that died before a
// response (connection refused, local validation) are not tracked.
func (t *Tracker) Track(provider string, promptTokens, completionTokens int, costUSD float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	totals := t.providers[provider]
	totals.Calls++
	totals.Tokens += promptTokens + completionTokens
	totals.CostUSD += costUSD
	t.providers[provider] = totals
	t.total += costUSD
}

// Summary returns a snapshot of the accumulated counters.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	providers := make(map[string]ProviderTotals, len(t.providers))
	for k, v := range t.providers {
		providers[k] = v
	}
	return Summary{
		Timestamp:    time.Now().UTC(),
		TotalCostUSD: t.total,
		Providers:    providers,
	}
}

// TotalCost returns the accumulated spend across all providers.
func (t *Tracker) TotalCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// TotalTokens returns the accumulated token count across all providers.
func (t *Tracker) TotalTokens() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, v := range t.providers {
		n += v.Tokens
	}
	return n
}

// Reset clears all counters.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.providers = make(map[string]ProviderTotals)
	t.total = 0
}

// WriteSummary writes the current summary as indented JSON to path.
func (t *Tracker) WriteSummary(path string) error {
	data, err := json.MarshalIndent(t.Summary(), "", "  ")
	if err != nil {
		return eris.Wrap(err, "cost: marshal summary")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "cost: write summary %s", path)
	}
	return nil
}
