// Package history keeps an audit trail of analysis invocations in SQLite.
// Only run metadata and the top suggestions are stored; the task list itself
// is never persisted.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marcus/triage/internal/analysis"
	"github.com/marcus/triage/internal/strategy"
	"github.com/marcus/triage/internal/tasks"
)

// DefaultLimit is how many runs Recent returns when asked for none.
const DefaultLimit = 20

// Run is one recorded invocation.
type Run struct {
	ID          string            `json:"id"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	Strategy    strategy.Strategy `json:"strategy"`
	Weights     strategy.Weights  `json:"weights"`
	TaskCount   int               `json:"task_count"`
	ScoredCount int               `json:"scored_count"`
	Phase       analysis.Phase    `json:"phase"`
	FailedStep  analysis.Step     `json:"failed_step,omitempty"`
	Error       string            `json:"error,omitempty"`
	Top         []tasks.Task      `json:"top"`
}

// Duration is how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded reports whether both remote calls completed.
func (r Run) Succeeded() bool {
	return r.Phase == analysis.PhaseDone
}

// Store reads and writes analysis runs.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database whose schema is already migrated.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record implements analysis.Recorder.
func (s *Store) Record(ctx context.Context, r *analysis.Report) error {
	if s.db == nil {
		return errors.New("database is nil")
	}

	weightsJSON, err := json.Marshal(r.Weights)
	if err != nil {
		return fmt.Errorf("marshaling weights: %w", err)
	}
	top := r.Top
	if top == nil {
		top = []tasks.Task{}
	}
	topJSON, err := json.Marshal(top)
	if err != nil {
		return fmt.Errorf("marshaling top tasks: %w", err)
	}
	var errText string
	if r.Err != nil {
		errText = r.Err.Error()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_runs (id, started_at, finished_at, strategy, weights, task_count,
			scored_count, phase, failed_step, error, top_tasks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.StartedAt.UTC(),
		r.FinishedAt.UTC(),
		string(r.Strategy),
		string(weightsJSON),
		r.TaskCount,
		len(r.Scored),
		string(r.Phase),
		string(r.FailedStep()),
		errText,
		string(topJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting analysis run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if s.db == nil {
		return nil, errors.New("database is nil")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, strategy, weights, task_count,
			scored_count, phase, failed_step, error, top_tasks
		FROM analysis_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying analysis runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating analysis runs: %w", err)
	}
	return runs, nil
}

// Since returns every run started at or after since, oldest first.
func (s *Store) Since(ctx context.Context, since time.Time) ([]Run, error) {
	if s.db == nil {
		return nil, errors.New("database is nil")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, strategy, weights, task_count,
			scored_count, phase, failed_step, error, top_tasks
		FROM analysis_runs
		WHERE started_at >= ?
		ORDER BY started_at ASC
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying analysis runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating analysis runs: %w", err)
	}
	return runs, nil
}

// Get returns the run with id, or nil if there is none.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, errors.New("database is nil")
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, strategy, weights, task_count,
			scored_count, phase, failed_step, error, top_tasks
		FROM analysis_runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Prune deletes runs that started before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analysis_runs WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning analysis runs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run                  Run
		strategyName, phase  string
		failedStep           string
		weightsJSON, topJSON string
	)
	err := sc.Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&strategyName,
		&weightsJSON,
		&run.TaskCount,
		&run.ScoredCount,
		&phase,
		&failedStep,
		&run.Error,
		&topJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scanning analysis run: %w", err)
	}
	run.Strategy = strategy.Strategy(strategyName)
	run.Phase = analysis.Phase(phase)
	run.FailedStep = analysis.Step(failedStep)

	if err := json.Unmarshal([]byte(weightsJSON), &run.Weights); err != nil {
		return Run{}, fmt.Errorf("unmarshaling weights: %w", err)
	}
	if err := json.Unmarshal([]byte(topJSON), &run.Top); err != nil {
		return Run{}, fmt.Errorf("unmarshaling top tasks: %w", err)
	}
	return run, nil
}
