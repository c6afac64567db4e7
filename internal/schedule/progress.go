package schedule

import (
	"time"

	"go.uber.org/zap"
)

// Sink receives progress notifications from the scheduler. Implementations
// must be cheap; the scheduler calls them synchronously from workers.
type Sink interface {
	// Progress fires after every terminal task transition. completed and
	// failed sum to the number of finished tasks; expected is the current
	// total of known units and can shrink when an anticipated follow-on
	// is abandoned.
	Progress(completed, expected, failed int)

	// Event fires once per successful task with a short preview of the
	// produced content.
	Event(recordID string, stage Stage, preview string, at time.Time)
}

// NopSink discards all notifications.
type NopSink struct{}

func (NopSink) Progress(completed, expected, failed int) {}

func (NopSink) Event(recordID string, stage Stage, preview string, at time.Time) {}

// ZapSink logs progress through the global zap logger.
type ZapSink struct{}

func (ZapSink) Progress(completed, expected, failed int) {
	done := completed + failed
	pct := 1.0
	if expected > 0 {
		pct = float64(done) / float64(expected)
		if pct > 1 {
			pct = 1
		}
	}
	zap.L().Info("progress",
		zap.Int("completed", completed),
		zap.Int("failed", failed),
		zap.Int("expected", expected),
		zap.Float64("fraction", pct),
	)
}

func (ZapSink) Event(recordID string, stage Stage, preview string, at time.Time) {
	zap.L().Info("task complete",
		zap.String("record", recordID),
		zap.String("stage", string(stage)),
		zap.String("preview", preview),
		zap.Time("at", at),
	)
}
