// Package batch turns the current task list into the weighted records sent to
// the scoring service.
package batch

import (
	"github.com/marcus/triage/internal/strategy"
	"github.com/marcus/triage/internal/tasks"
)

// Source provides a point-in-time copy of the tasks to score.
type Source interface {
	Snapshot() []tasks.Task
}

// WeightedTask is one batch record: the task fields plus the four weights
// resolved for the batch, flattened into a single JSON object.
type WeightedTask struct {
	tasks.Task
	strategy.Weights
}

// Prepare annotates every task in src with w, preserving order.
// The source is read once and never modified.
func Prepare(src Source, w strategy.Weights) []WeightedTask {
	snap := src.Snapshot()
	out := make([]WeightedTask, len(snap))
	for i, t := range snap {
		if t.Dependencies == nil {
			t.Dependencies = make([]tasks.TaskID, 0)
		}
		out[i] = WeightedTask{Task: t, Weights: w}
	}
	return out
}

// Tasks strips the weights from b.
func Tasks(b []WeightedTask) []tasks.Task {
	out := make([]tasks.Task, len(b))
	for i, wt := range b {
		out[i] = wt.Task.Clone()
	}
	return out
}
