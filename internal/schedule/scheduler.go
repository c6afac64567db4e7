package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/outreach-cli/internal/model"
)

// DefaultWorkers is the worker pool size when none is configured.
const DefaultWorkers = 5

const previewLen = 80

// Persister receives the accumulated field updates in one flush at the end
// of a run. The whole batch either lands or does not; the scheduler assumes
// no partial success.
type Persister interface {
	PersistBatch(ctx context.Context, updates []model.FieldUpdate) error
}

// Scheduler runs a batch of profile tasks on a fixed-size worker pool.
// Research successes reactively submit the follow-on email task.
type Scheduler struct {
	gen     Generator
	workers int
	sink    Sink
	now     func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers sets the worker pool size. Values below 1 fall back to the
// default.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n >= 1 {
			s.workers = n
		}
	}
}

// WithSink sets the progress sink.
func WithSink(sink Sink) Option {
	return func(s *Scheduler) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler around a Generator.
func New(gen Generator, opts ...Option) *Scheduler {
	s := &Scheduler{
		gen:     gen,
		workers: DefaultWorkers,
		sink:    NopSink{},
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Result summarizes one scheduler run.
type Result struct {
	Submitted int
	Completed int
	Failed    int
	Flushed   int
}

// runState is the mutable state of one run, guarded by its mutex. The
// channel close happens under the mutex when the last outstanding task
// reaches a terminal state, so submission and close never race.
type runState struct {
	mu          sync.Mutex
	byID        map[int]*model.Profile
	tasks       chan Task
	outstanding int
	submitted   int
	completed   int
	failed      int
	anticipated int
	updates     []model.FieldUpdate
}

// expectedLocked returns the current total of known units.
func (st *runState) expectedLocked() int {
	return st.submitted + st.anticipated
}

// submitLocked enqueues a task. The channel is buffered to the maximum
// possible task count, so this never blocks.
func (st *runState) submitLocked(t Task) {
	st.submitted++
	st.outstanding++
	st.tasks <- t
}

// finishLocked records a terminal transition and closes the channel when
// nothing is pending or running.
func (st *runState) finishLocked() {
	st.outstanding--
	if st.outstanding == 0 {
		close(st.tasks)
	}
}

// Run plans tasks for the profiles, processes them to completion, and
// flushes the accumulated updates to dst in one batch. A flush failure is
// the run's terminal error; per-task failures are counted, not returned.
func (s *Scheduler) Run(ctx context.Context, profiles []model.Profile, dst Persister) (Result, error) {
	st := &runState{
		byID: make(map[int]*model.Profile, len(profiles)),
		// Each profile contributes at most one research and one email
		// task, so follow-on submission can never block.
		tasks: make(chan Task, 2*len(profiles)),
	}
	for i := range profiles {
		p := profiles[i].Clone()
		st.byID[p.ID] = &p
	}

	st.mu.Lock()
	for _, t := range Plan(profiles) {
		st.submitLocked(t)
		if t.Stage == StageResearch {
			// A fresh research task usually implies an email to follow.
			st.anticipated++
		}
	}
	empty := st.outstanding == 0
	if empty {
		close(st.tasks)
	}
	st.mu.Unlock()

	g := new(errgroup.Group)
	for range s.workers {
		g.Go(func() error {
			for t := range st.tasks {
				s.process(ctx, st, t)
			}
			return nil
		})
	}
	// Worker errors are handled per-task; the group only synchronizes
	// drain.
	_ = g.Wait()

	st.mu.Lock()
	res := Result{
		Submitted: st.submitted,
		Completed: st.completed,
		Failed:    st.failed,
	}
	updates := st.updates
	st.mu.Unlock()

	if len(updates) == 0 {
		return res, nil
	}

	// Updates accumulated before a cancellation are still worth keeping.
	if err := dst.PersistBatch(context.WithoutCancel(ctx), updates); err != nil {
		return res, eris.Wrap(err, "schedule: flush failed, results not persisted")
	}
	res.Flushed = len(updates)
	return res, nil
}

func (s *Scheduler) process(ctx context.Context, st *runState, t Task) {
	st.mu.Lock()
	p, ok := st.byID[t.ProfileID]
	if !ok {
		// Plan only emits known IDs; a miss means a caller bug.
		st.failed++
		if t.Stage == StageResearch {
			st.anticipated--
		}
		st.finishLocked()
		completed, expected, failed := st.completed, st.expectedLocked(), st.failed
		st.mu.Unlock()
		zap.L().Error("task references unknown profile", zap.Int("profile_id", t.ProfileID))
		s.sink.Progress(completed, expected, failed)
		return
	}
	snapshot := p.Clone()
	st.mu.Unlock()

	value, err := s.gen.Generate(ctx, snapshot, t.Stage)

	st.mu.Lock()
	if err != nil {
		st.failed++
		if t.Stage == StageResearch {
			// No research, no email.
			st.anticipated--
		}
		st.finishLocked()
		completed, expected, failed := st.completed, st.expectedLocked(), st.failed
		st.mu.Unlock()

		zap.L().Warn("task failed",
			zap.String("record", snapshot.Name()),
			zap.String("stage", string(t.Stage)),
			zap.Error(err),
		)
		s.sink.Progress(completed, expected, failed)
		return
	}

	field := FieldForStage(t.Stage)
	p.Set(field, value)
	st.updates = append(st.updates, model.FieldUpdate{
		ProfileID: t.ProfileID,
		Field:     field,
		Value:     value,
	})
	st.completed++

	// The follow-on email task is submitted before this unit's progress
	// is reported, re-reading the draft state at submission time.
	if t.Stage == StageResearch {
		st.anticipated--
		if !p.HasDraft() && ctx.Err() == nil {
			st.submitLocked(Task{ProfileID: t.ProfileID, Stage: StageEmail})
		}
	}
	st.finishLocked()
	completed, expected, failed := st.completed, st.expectedLocked(), st.failed
	name := p.Name()
	st.mu.Unlock()

	s.sink.Event(name, t.Stage, preview(value), s.now())
	s.sink.Progress(completed, expected, failed)
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen])
}
