// Package stats computes aggregate statistics over recorded analysis runs.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/marcus/triage/internal/analysis"
	"github.com/marcus/triage/internal/history"
)

// TopTaskLimit caps how many recurring recommendations a Result lists.
const TopTaskLimit = 5

// Duration wraps time.Duration for JSON serialization as milliseconds.
type Duration struct {
	time.Duration
}

// MarshalJSON serializes Duration as integer milliseconds.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Milliseconds())
}

// UnmarshalJSON deserializes Duration from integer milliseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return err
	}
	d.Duration = time.Duration(ms) * time.Millisecond
	return nil
}

// String returns a human-readable duration string.
func (d Duration) String() string {
	dur := d.Duration
	switch {
	case dur < time.Second:
		return fmt.Sprintf("%dms", dur.Milliseconds())
	case dur < time.Minute:
		return fmt.Sprintf("%.1fs", dur.Seconds())
	default:
		return fmt.Sprintf("%dm %ds", int(dur.Minutes()), int(dur.Seconds())%60)
	}
}

// Result holds all computed statistics, JSON-serializable.
type Result struct {
	// Run overview
	TotalRuns      int        `json:"total_runs"`
	FirstRunAt     *time.Time `json:"first_run_at,omitempty"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	TotalDuration  Duration   `json:"total_duration_ms"`
	AvgRunDuration Duration   `json:"avg_run_duration_ms"`

	// Outcomes
	Succeeded     int     `json:"succeeded"`
	AnalyzeFailed int     `json:"analyze_failed"`
	SuggestFailed int     `json:"suggest_failed"`
	SuccessRate   float64 `json:"success_rate"`

	// Volume
	TasksSubmitted int `json:"tasks_submitted"`
	TasksScored    int `json:"tasks_scored"`

	StrategyBreakdown map[string]int `json:"strategy_breakdown,omitempty"`

	// Tasks recommended most often across runs
	TopTasks []TaskCount `json:"top_tasks,omitempty"`
}

// TaskCount is how often a task title appeared among the recommendations.
type TaskCount struct {
	Title     string  `json:"title"`
	Count     int     `json:"count"`
	BestScore float64 `json:"best_score"`
}

// RunSource lists recorded runs. history.Store implements it.
type RunSource interface {
	Since(ctx context.Context, since time.Time) ([]history.Run, error)
}

// Stats computes statistics from a run source.
type Stats struct {
	source  RunSource
	nowFunc func() time.Time
}

// New creates a Stats instance.
func New(source RunSource) *Stats {
	return &Stats{source: source, nowFunc: time.Now}
}

// Compute aggregates runs from the last days days. Zero or less means all
// recorded runs.
func (s *Stats) Compute(ctx context.Context, days int) (*Result, error) {
	var since time.Time
	if days > 0 {
		since = s.nowFunc().AddDate(0, 0, -days)
	}
	runs, err := s.source.Since(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("loading runs: %w", err)
	}
	return Aggregate(runs), nil
}

// Aggregate computes a Result from runs in any order.
func Aggregate(runs []history.Run) *Result {
	result := &Result{StrategyBreakdown: make(map[string]int)}
	if len(runs) == 0 {
		return result
	}

	counts := make(map[string]*TaskCount)
	for _, r := range runs {
		result.TotalRuns++

		if result.FirstRunAt == nil || r.StartedAt.Before(*result.FirstRunAt) {
			t := r.StartedAt
			result.FirstRunAt = &t
		}
		if result.LastRunAt == nil || r.StartedAt.After(*result.LastRunAt) {
			t := r.StartedAt
			result.LastRunAt = &t
		}
		if d := r.Duration(); d > 0 {
			result.TotalDuration.Duration += d
		}

		switch {
		case r.Succeeded():
			result.Succeeded++
		case r.FailedStep == analysis.StepAnalyze:
			result.AnalyzeFailed++
		case r.FailedStep == analysis.StepSuggest:
			result.SuggestFailed++
		}

		result.TasksSubmitted += r.TaskCount
		result.TasksScored += r.ScoredCount
		result.StrategyBreakdown[r.Strategy.String()]++

		for _, t := range r.Top {
			c, ok := counts[t.Title]
			if !ok {
				c = &TaskCount{Title: t.Title}
				counts[t.Title] = c
			}
			c.Count++
			if t.Score != nil && (c.Count == 1 || *t.Score > c.BestScore) {
				c.BestScore = *t.Score
			}
		}
	}

	result.AvgRunDuration = Duration{result.TotalDuration.Duration / time.Duration(result.TotalRuns)}
	result.SuccessRate = float64(result.Succeeded) / float64(result.TotalRuns) * 100

	for _, c := range counts {
		result.TopTasks = append(result.TopTasks, *c)
	}
	sort.Slice(result.TopTasks, func(i, j int) bool {
		a, b := result.TopTasks[i], result.TopTasks[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.BestScore != b.BestScore {
			return a.BestScore > b.BestScore
		}
		return a.Title < b.Title
	})
	if len(result.TopTasks) > TopTaskLimit {
		result.TopTasks = result.TopTasks[:TopTaskLimit]
	}
	return result
}
