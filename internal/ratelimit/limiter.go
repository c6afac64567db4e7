// Package ratelimit provides per-provider sliding-window admission control
// for outbound AI API calls. Unlike the transport-level politeness limiters
// in pkg clients, this enforces the requests-per-minute ceilings the
// providers bill against, and it only ever delays rather than rejecting.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Window is the trailing interval over which requests are counted.
const Window = time.Minute

// DefaultPollInterval is how long Await sleeps between admission checks.
const DefaultPollInterval = time.Second

// Limiter tracks request timestamps per provider and admits new requests
// only while the trailing-window count is below the provider's ceiling.
type Limiter struct {
	mu        sync.Mutex
	providers map[string]*window

	// poll and now are injectable for tests.
	poll time.Duration
	now  func() time.Time
}

// window holds one provider's admission state. Each window has its own
// mutex so providers never contend with each other.
type window struct {
	mu      sync.Mutex
	ceiling int
	times   []time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithPollInterval overrides the sleep between admission checks.
func WithPollInterval(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.poll = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a Limiter with the given per-provider requests-per-minute
// ceilings. Providers not listed are unlimited.
func New(ceilings map[string]int, opts ...Option) *Limiter {
	l := &Limiter{
		providers: make(map[string]*window, len(ceilings)),
		poll:      DefaultPollInterval,
		now:       time.Now,
	}
	for provider, rpm := range ceilings {
		l.providers[provider] = &window{ceiling: rpm}
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// get returns the window for provider, or nil if the provider is unlimited.
func (l *Limiter) get(provider string) *window {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.providers[provider]
}

// prune drops timestamps older than the trailing window. Caller holds w.mu.
func (w *window) prune(now time.Time) {
	cutoff := now.Add(-Window)
	i := 0
	for i < len(w.times) && !w.times[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.times = append(w.times[:0], w.times[i:]...)
	}
}

// CanAdmit reports whether a request to provider could proceed right now.
// Pruning expired window entries is its only side effect.
func (l *Limiter) CanAdmit(provider string) bool {
	w := l.get(provider)
	if w == nil {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ceiling <= 0 {
		return true
	}
	w.prune(l.now())
	return len(w.times) < w.ceiling
}

// Record appends now to the provider's window. Call it immediately before
// dispatching the request, and only for requests actually attempted.
func (l *Limiter) Record(provider string) {
	w := l.get(provider)
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.times = append(w.times, l.now())
}

// Await blocks until provider would admit a request or ctx is cancelled.
// It polls rather than computing an exact wake-up so a ceiling lowered via
// SetCeiling takes effect on the next check.
func (l *Limiter) Await(ctx context.Context, provider string) error {
	for {
		if l.CanAdmit(provider) {
			return nil
		}
		zap.L().Debug("rate limit reached, waiting",
			zap.String("provider", provider),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.poll):
		}
	}
}

// Acquire waits for admission and records the request in one step. The
// check and the append happen under the provider's mutex, so two workers
// racing through Acquire cannot both slip under the ceiling.
func (l *Limiter) Acquire(ctx context.Context, provider string) error {
	w := l.get(provider)
	if w == nil {
		return ctx.Err()
	}
	for {
		w.mu.Lock()
		if w.ceiling <= 0 {
			w.times = append(w.times, l.now())
			w.mu.Unlock()
			return nil
		}
		w.prune(l.now())
		if len(w.times) < w.ceiling {
			w.times = append(w.times, l.now())
			w.mu.Unlock()
			return nil
		}
		w.mu.Unlock()

		zap.L().Debug("rate limit reached, waiting",
			zap.String("provider", provider),
			zap.Int("ceiling", w.ceiling),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.poll):
		}
	}
}

// SetCeiling live-updates a provider's requests-per-minute ceiling.
// Existing window entries are kept; a ceiling of zero or less means
// unlimited. Unknown providers are registered.
func (l *Limiter) SetCeiling(provider string, rpm int) {
	l.mu.Lock()
	w, ok := l.providers[provider]
	if !ok {
		l.providers[provider] = &window{ceiling: rpm}
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	w.mu.Lock()
	w.ceiling = rpm
	w.mu.Unlock()
}

// InFlight returns the current trailing-window request count for provider.
func (l *Limiter) InFlight(provider string) int {
	w := l.get(provider)
	if w == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(l.now())
	return len(w.times)
}
