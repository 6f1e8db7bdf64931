package stats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/marcus/triage/internal/analysis"
	"github.com/marcus/triage/internal/db"
	"github.com/marcus/triage/internal/history"
	"github.com/marcus/triage/internal/strategy"
	"github.com/marcus/triage/internal/tasks"
)

func score(f float64) *float64 { return &f }

func run(id string, start time.Time, st strategy.Strategy, phase analysis.Phase, step analysis.Step, top ...tasks.Task) history.Run {
	return history.Run{
		ID:          id,
		StartedAt:   start,
		FinishedAt:  start.Add(2 * time.Second),
		Strategy:    st,
		TaskCount:   4,
		ScoredCount: 4,
		Phase:       phase,
		FailedStep:  step,
		Top:         top,
	}
}

func TestAggregate(t *testing.T) {
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	report := tasks.Task{Title: "Write report", Score: score(8)}
	login := tasks.Task{Title: "Fix login", Score: score(9.5)}

	runs := []history.Run{
		run("a", base, strategy.Smart, analysis.PhaseDone, "", report, login),
		run("b", base.Add(time.Hour), strategy.Deadline, analysis.PhaseDone, "", tasks.Task{Title: "Write report", Score: score(8.7)}),
		run("c", base.Add(2*time.Hour), strategy.Smart, analysis.PhaseFailed, analysis.StepAnalyze),
		run("d", base.Add(-time.Hour), strategy.Smart, analysis.PhaseFailed, analysis.StepSuggest),
	}
	runs[2].ScoredCount = 0

	r := Aggregate(runs)

	if r.TotalRuns != 4 || r.Succeeded != 2 || r.AnalyzeFailed != 1 || r.SuggestFailed != 1 {
		t.Errorf("outcomes = %+v", r)
	}
	if r.SuccessRate != 50 {
		t.Errorf("SuccessRate = %v, want 50", r.SuccessRate)
	}
	if !r.FirstRunAt.Equal(base.Add(-time.Hour)) || !r.LastRunAt.Equal(base.Add(2*time.Hour)) {
		t.Errorf("range = %v .. %v", r.FirstRunAt, r.LastRunAt)
	}
	if r.TotalDuration.Duration != 8*time.Second || r.AvgRunDuration.Duration != 2*time.Second {
		t.Errorf("durations = %v / %v", r.TotalDuration, r.AvgRunDuration)
	}
	if r.TasksSubmitted != 16 || r.TasksScored != 12 {
		t.Errorf("volume = %d submitted, %d scored", r.TasksSubmitted, r.TasksScored)
	}
	if r.StrategyBreakdown["smart"] != 3 || r.StrategyBreakdown["deadline"] != 1 {
		t.Errorf("StrategyBreakdown = %v", r.StrategyBreakdown)
	}

	if len(r.TopTasks) != 2 {
		t.Fatalf("TopTasks = %+v", r.TopTasks)
	}
	if r.TopTasks[0].Title != "Write report" || r.TopTasks[0].Count != 2 || r.TopTasks[0].BestScore != 8.7 {
		t.Errorf("TopTasks[0] = %+v", r.TopTasks[0])
	}
}

func TestAggregate_Empty(t *testing.T) {
	r := Aggregate(nil)
	if r.TotalRuns != 0 || r.SuccessRate != 0 || r.FirstRunAt != nil || len(r.TopTasks) != 0 {
		t.Errorf("Aggregate(nil) = %+v", r)
	}
}

func TestAggregate_TopTaskLimit(t *testing.T) {
	var top []tasks.Task
	for _, title := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		top = append(top, tasks.Task{Title: title, Score: score(5)})
	}
	r := Aggregate([]history.Run{run("x", time.Now(), strategy.Smart, analysis.PhaseDone, "", top...)})
	if len(r.TopTasks) != TopTaskLimit {
		t.Errorf("len(TopTasks) = %d, want %d", len(r.TopTasks), TopTaskLimit)
	}
	if r.TopTasks[0].Title != "a" {
		t.Errorf("ties should sort by title, got %q first", r.TopTasks[0].Title)
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{350 * time.Millisecond, "350ms"},
		{2500 * time.Millisecond, "2.5s"},
		{95 * time.Second, "1m 35s"},
	}
	for _, tt := range tests {
		if got := (Duration{tt.d}).String(); got != tt.want {
			t.Errorf("Duration(%v).String() = %q, want %q", tt.d, got, tt.want)
		}
	}

	data, err := json.Marshal(Duration{1500 * time.Millisecond})
	if err != nil || string(data) != "1500" {
		t.Errorf("MarshalJSON = %s, %v", data, err)
	}
	var d Duration
	if err := json.Unmarshal([]byte("250"), &d); err != nil || d.Duration != 250*time.Millisecond {
		t.Errorf("UnmarshalJSON = %v, %v", d, err)
	}
}

type fakeSource struct {
	since time.Time
	runs  []history.Run
	err   error
}

func (f *fakeSource) Since(ctx context.Context, since time.Time) ([]history.Run, error) {
	f.since = since
	return f.runs, f.err
}

func TestCompute_Window(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{}
	s := New(src)
	s.nowFunc = func() time.Time { return now }

	if _, err := s.Compute(context.Background(), 7); err != nil {
		t.Fatal(err)
	}
	if !src.since.Equal(now.AddDate(0, 0, -7)) {
		t.Errorf("since = %v", src.since)
	}

	if _, err := s.Compute(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	if !src.since.IsZero() {
		t.Errorf("days=0 should load every run, since = %v", src.since)
	}

	src.err = errors.New("disk full")
	if _, err := s.Compute(context.Background(), 0); err == nil {
		t.Error("expected source error")
	}
}

func TestCompute_FromHistory(t *testing.T) {
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = database.Close() }()
	store := history.NewStore(database.SQL())

	start := time.Now().Add(-time.Hour)
	err = store.Record(context.Background(), &analysis.Report{
		ID:         "r1",
		Strategy:   strategy.Fastest,
		Weights:    strategy.Resolve(strategy.Fastest),
		Phase:      analysis.PhaseDone,
		TaskCount:  2,
		Scored:     []tasks.Task{{ID: 1}, {ID: 2}},
		Top:        []tasks.Task{{ID: 1, Title: "Ship it", Dependencies: []tasks.TaskID{}, Score: score(7.5)}},
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
	})
	if err != nil {
		t.Fatal(err)
	}

	r, err := New(store).Compute(context.Background(), 30)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if r.TotalRuns != 1 || r.Succeeded != 1 || r.StrategyBreakdown["fastest"] != 1 {
		t.Errorf("result = %+v", r)
	}
	if len(r.TopTasks) != 1 || r.TopTasks[0].Title != "Ship it" {
		t.Errorf("TopTasks = %+v", r.TopTasks)
	}
}
