// Package analysis runs one triage invocation against the scoring service:
// snapshot the store, weight it by the selected strategy, score it, replace
// the store with the result, then fetch the top suggestions.
package analysis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/triage/internal/batch"
	"github.com/marcus/triage/internal/logging"
	"github.com/marcus/triage/internal/strategy"
	"github.com/marcus/triage/internal/tasks"
)

// DefaultTopN is how many suggestions a report keeps.
const DefaultTopN = 3

// Scorer is the remote scoring service.
type Scorer interface {
	Analyze(ctx context.Context, b []batch.WeightedTask) ([]tasks.Task, error)
	Suggest(ctx context.Context) ([]tasks.Task, error)
}

// Recorder persists finished invocations.
type Recorder interface {
	Record(ctx context.Context, r *Report) error
}

// Report describes one invocation.
type Report struct {
	ID         string
	Strategy   strategy.Strategy
	Weights    strategy.Weights
	Phase      Phase
	TaskCount  int
	Scored     []tasks.Task // analyze result, now held by the store
	Top        []tasks.Task
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

// Duration is how long the invocation took.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailedStep returns the step that failed, or "" on success.
func (r *Report) FailedStep() Step {
	var se *StepError
	if errors.As(r.Err, &se) {
		return se.Step
	}
	return ""
}

// Analyzer sequences analyze and suggest calls for a task store.
type Analyzer struct {
	store        *tasks.Store
	scorer       Scorer
	logger       *logging.Logger
	eventHandler EventHandler
	recorder     Recorder
	topN         int
	now          func() time.Time

	mu       sync.Mutex
	strategy strategy.Strategy
	phase    Phase

	inFlight atomic.Bool
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithEventHandler sets an optional callback for lifecycle events.
func WithEventHandler(h EventHandler) Option {
	return func(a *Analyzer) { a.eventHandler = h }
}

// WithRecorder persists every invocation that reaches the scoring service.
func WithRecorder(r Recorder) Option {
	return func(a *Analyzer) { a.recorder = r }
}

// WithStrategy sets the initial strategy.
func WithStrategy(s strategy.Strategy) Option {
	return func(a *Analyzer) { a.strategy = s }
}

// WithTopN limits how many suggestions a report keeps.
func WithTopN(n int) Option {
	return func(a *Analyzer) { a.topN = n }
}

// New creates an Analyzer over store.
func New(store *tasks.Store, scorer Scorer, opts ...Option) *Analyzer {
	a := &Analyzer{
		store:    store,
		scorer:   scorer,
		logger:   logging.Component("analysis"),
		topN:     DefaultTopN,
		now:      time.Now,
		strategy: strategy.Default,
		phase:    PhaseIdle,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SelectStrategy sets the strategy used by the next invocation. A batch that
// is already prepared keeps the weights it was built with.
func (a *Analyzer) SelectStrategy(s strategy.Strategy) {
	if !strategy.IsKnown(s) {
		a.logger.WarnCtx("unknown strategy, scoring with balanced weights", map[string]any{"strategy": s.String()})
	}
	a.mu.Lock()
	a.strategy = s
	a.mu.Unlock()
}

// Strategy returns the selected strategy.
func (a *Analyzer) Strategy() strategy.Strategy {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.strategy
}

// Phase returns the phase of the current or most recent invocation.
func (a *Analyzer) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// InFlight reports whether an invocation is running.
func (a *Analyzer) InFlight() bool {
	return a.inFlight.Load()
}

// Run performs one invocation.
//
// It returns ErrInFlight if another invocation is running and
// ErrNothingToAnalyze if the store is empty; neither touches the network.
// Otherwise the returned Report is non-nil. A *StepError reports which remote
// call failed: after an analyze failure the store is unchanged, after a
// suggest failure it already holds the scored tasks in Report.Scored.
func (a *Analyzer) Run(ctx context.Context) (*Report, error) {
	if !a.inFlight.CompareAndSwap(false, true) {
		a.logger.Warn("analysis already in progress, skipping")
		return nil, ErrInFlight
	}
	defer a.inFlight.Store(false)

	st := a.Strategy()
	weights := strategy.Resolve(st)
	b := batch.Prepare(a.store, weights)
	if len(b) == 0 {
		a.setPhase(PhaseIdle)
		a.logger.Info("no tasks to analyze")
		return nil, ErrNothingToAnalyze
	}

	r := &Report{
		ID:        uuid.NewString(),
		Strategy:  st,
		Weights:   weights,
		TaskCount: len(b),
		StartedAt: a.now(),
	}

	m, err := newPhaseMachine(r.ID)
	if err != nil {
		return nil, err
	}
	a.setPhase(m.current())

	a.logger.InfoCtx("analysis started", map[string]any{
		"run_id":   r.ID,
		"strategy": st.String(),
		"tasks":    r.TaskCount,
	})
	a.emit(Event{Type: EventRunStart, RunID: r.ID, Strategy: st, Phase: PhaseIdle, TaskCount: r.TaskCount})

	if err := a.advance(m, r, eventAnalyze); err != nil {
		return nil, err
	}
	if err := a.advance(m, r, eventSubmit); err != nil {
		return nil, err
	}

	scored, err := a.scorer.Analyze(ctx, b)
	if err != nil {
		return a.fail(ctx, m, r, &StepError{Step: StepAnalyze, Err: err})
	}

	a.store.ReplaceAll(scored)
	r.Scored = a.store.Snapshot()
	if err := a.advance(m, r, eventAnalyzed); err != nil {
		return nil, err
	}

	top, err := a.scorer.Suggest(ctx)
	if err != nil {
		return a.fail(ctx, m, r, &StepError{Step: StepSuggest, Err: err})
	}

	if a.topN > 0 && len(top) > a.topN {
		top = top[:a.topN]
	}
	r.Top = top
	if err := a.advance(m, r, eventSuggested); err != nil {
		return nil, err
	}

	return a.finish(ctx, r, nil)
}

func (a *Analyzer) advance(m *phaseMachine, r *Report, event string) error {
	if err := m.send(event); err != nil {
		a.logger.ErrorCtx("invalid analysis transition", map[string]any{"run_id": r.ID, "error": err})
		return err
	}
	p := m.current()
	r.Phase = p
	a.setPhase(p)
	a.logger.DebugCtx("analysis phase", map[string]any{"run_id": r.ID, "event": event, "phase": p.String()})
	a.emit(Event{Type: EventPhase, RunID: r.ID, Strategy: r.Strategy, Phase: p, TaskCount: r.TaskCount})
	return nil
}

func (a *Analyzer) fail(ctx context.Context, m *phaseMachine, r *Report, stepErr *StepError) (*Report, error) {
	if err := a.advance(m, r, eventFail); err != nil {
		return nil, err
	}
	a.logger.WarnCtx("analysis failed", map[string]any{
		"run_id": r.ID,
		"step":   string(stepErr.Step),
		"error":  stepErr.Err,
	})
	return a.finish(ctx, r, stepErr)
}

func (a *Analyzer) finish(ctx context.Context, r *Report, runErr error) (*Report, error) {
	r.FinishedAt = a.now()
	r.Err = runErr

	fields := map[string]any{
		"run_id":      r.ID,
		"phase":       r.Phase.String(),
		"scored":      len(r.Scored),
		"duration_ms": r.Duration().Milliseconds(),
	}
	if runErr == nil {
		a.logger.InfoCtx("analysis complete", fields)
	} else {
		a.logger.InfoCtx("analysis ended with error", fields)
	}

	if a.recorder != nil {
		if err := a.recorder.Record(context.WithoutCancel(ctx), r); err != nil {
			a.logger.WarnCtx("recording analysis run", map[string]any{"run_id": r.ID, "error": err})
		}
	}

	e := Event{
		Type:      EventRunEnd,
		RunID:     r.ID,
		Strategy:  r.Strategy,
		Phase:     r.Phase,
		TaskCount: r.TaskCount,
		Duration:  r.Duration(),
		Report:    r,
	}
	if runErr != nil {
		e.Error = runErr.Error()
	}
	a.emit(e)

	return r, runErr
}

func (a *Analyzer) setPhase(p Phase) {
	a.mu.Lock()
	a.phase = p
	a.mu.Unlock()
}

// emit sends an event to the registered handler, if any.
func (a *Analyzer) emit(e Event) {
	if a.eventHandler != nil {
		e.Time = a.now()
		a.eventHandler(e)
	}
}
