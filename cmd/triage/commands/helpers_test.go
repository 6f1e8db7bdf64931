package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marcus/triage/internal/analysis"
	"github.com/marcus/triage/internal/config"
	"github.com/marcus/triage/internal/scoring"
	"github.com/marcus/triage/internal/strategy"
	"github.com/marcus/triage/internal/tasks"
)

func TestFeedback(t *testing.T) {
	bulkErr := &tasks.BulkError{Problems: []string{"0: title is required"}}
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"success", nil, "Analysis complete."},
		{"empty", analysis.ErrNothingToAnalyze, "No tasks to analyze."},
		{"in flight", analysis.ErrInFlight, "Analysis already in progress."},
		{"validation", &tasks.ValidationError{Field: "title", Reason: "required"}, "Please fill all required fields correctly: title: required"},
		{"bulk", bulkErr, "Invalid bulk tasks: 0: title is required"},
		{
			"analyze detail",
			&analysis.StepError{Step: analysis.StepAnalyze, Err: &scoring.StatusError{StatusCode: 400, Detail: "Invalid task data"}},
			"Error analyzing tasks: Invalid task data",
		},
		{
			"analyze status",
			&analysis.StepError{Step: analysis.StepAnalyze, Err: &scoring.StatusError{StatusCode: 503}},
			"Error analyzing tasks: 503 Service Unavailable",
		},
		{
			"analyze field errors",
			&analysis.StepError{Step: analysis.StepAnalyze, Err: &scoring.StatusError{
				StatusCode: 400,
				Body:       []byte(`[{"importance":["Ensure this value is less than or equal to 10."]}]`),
			}},
			`Error analyzing tasks: [{"importance":["Ensure this value is less than or equal to 10."]}]`,
		},
		{
			"analyze transport",
			&analysis.StepError{Step: analysis.StepAnalyze, Err: errors.New("connection refused")},
			"Error analyzing tasks: connection refused",
		},
		{
			"suggest",
			&analysis.StepError{Step: analysis.StepSuggest, Err: &scoring.StatusError{StatusCode: 500}},
			"Error fetching top suggestions: 500 Internal Server Error",
		},
		{"cancelled", context.Canceled, "Analysis cancelled."},
		{"other", errors.New("boom"), "Error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := feedback(tt.err); got != tt.want {
				t.Errorf("feedback() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveStrategy(t *testing.T) {
	c := config.DefaultConfig()
	c.Strategy = "deadline"

	if got := resolveStrategy("", c); got != strategy.Deadline {
		t.Errorf("empty flag = %q, want config value", got)
	}
	if got := resolveStrategy(" High-Impact ", c); got != strategy.HighImpact {
		t.Errorf("flag = %q, want high-impact", got)
	}
	if got := resolveStrategy("chaos", c); strategy.IsKnown(got) {
		t.Errorf("unknown flag resolved to known strategy %q", got)
	}
}

func TestReadBulk(t *testing.T) {
	dir := t.TempDir()
	jsonFile := filepath.Join(dir, "tasks.json")
	yamlFile := filepath.Join(dir, "tasks.yml")
	bareFile := filepath.Join(dir, "tasks")
	_ = os.WriteFile(jsonFile, []byte(`[{"title":"A","due_date":"2025-01-01","estimated_hours":1,"importance":5}]`), 0644)
	_ = os.WriteFile(yamlFile, []byte("- title: A\n  due_date: 2025-01-01\n  estimated_hours: 1\n  importance: 5\n"), 0644)
	_ = os.WriteFile(bareFile, []byte("- title: A\n  due_date: 2025-01-01\n  estimated_hours: 1\n  importance: 5\n"), 0644)

	for _, path := range []string{jsonFile, yamlFile, bareFile} {
		data, err := readBulk(path, nil)
		if err != nil {
			t.Fatalf("readBulk(%s) error = %v", filepath.Base(path), err)
		}
		parsed, err := tasks.ParseBulk(data)
		if err != nil || len(parsed) != 1 || parsed[0].Title != "A" {
			t.Errorf("readBulk(%s) = %s, %v", filepath.Base(path), data, err)
		}
	}

	data, err := readBulk("-", strings.NewReader(`  [{"title":"stdin"}]`))
	if err != nil || !strings.Contains(string(data), `"stdin"`) {
		t.Errorf("readBulk(stdin) = %s, %v", data, err)
	}

	if _, err := readBulk(filepath.Join(dir, "missing.json"), nil); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFileKeepsTasksOnInvalidPayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")
	store := tasks.NewStore()

	_ = os.WriteFile(path, []byte(`[{"title":"A","due_date":"2025-01-01","estimated_hours":1,"importance":5}]`), 0644)
	if n, err := loadFile(store, path, nil); err != nil || n != 1 {
		t.Fatalf("loadFile() = %d, %v", n, err)
	}

	_ = os.WriteFile(path, []byte(`[{"title":"B"}]`), 0644)
	if _, err := loadFile(store, path, nil); !errors.Is(err, tasks.ErrInvalidBulk) {
		t.Fatalf("loadFile(invalid) error = %v, want ErrInvalidBulk", err)
	}
	snap := store.Snapshot()
	if len(snap) != 1 || snap[0].Title != "A" {
		t.Errorf("store = %+v, want previous tasks kept", snap)
	}

	_ = os.WriteFile(path, []byte(`[{"title":"C","due_date":"2025-02-01","estimated_hours":2,"importance":3},{"title":"D","due_date":"2025-02-02","estimated_hours":1,"importance":9}]`), 0644)
	if n, err := loadFile(store, path, nil); err != nil || n != 2 {
		t.Fatalf("loadFile(reload) = %d, %v", n, err)
	}
	snap = store.Snapshot()
	if len(snap) != 2 || snap[0].Title != "C" || snap[0].ID <= 1 {
		t.Errorf("reloaded store = %+v, want replaced contents with fresh ids", snap)
	}
}
