// Package tasks holds the task records of a triage session: the in-memory
// store, single and bulk entry, decoding of scored results, and priority
// classification of scores.
package tasks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// TaskID identifies a task within a session.
// It encodes as a JSON number and decodes from a number or a numeric string,
// since the scoring service echoes ids back as strings.
type TaskID int

// UnmarshalJSON implements json.Unmarshaler.
func (id *TaskID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("task id %q is not an integer", s)
		}
		*id = TaskID(n)
		return nil
	}

	if n, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		*id = TaskID(n)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil || f != math.Trunc(f) {
		return fmt.Errorf("task id %s is not an integer", data)
	}
	*id = TaskID(f)
	return nil
}

func (id TaskID) String() string {
	return strconv.Itoa(int(id))
}

// Task is a single unit of work. Score and Explanation are set only on tasks
// returned by the scoring service.
type Task struct {
	ID             TaskID   `json:"id"`
	Title          string   `json:"title"`
	DueDate        string   `json:"due_date"`
	EstimatedHours float64  `json:"estimated_hours"`
	Importance     int      `json:"importance"`
	Dependencies   []TaskID `json:"dependencies"`
	Score          *float64 `json:"score,omitempty"`
	Explanation    *string  `json:"explanation,omitempty"`
}

// Clone returns a copy of t that shares no memory with it.
func (t Task) Clone() Task {
	c := t
	c.Dependencies = make([]TaskID, len(t.Dependencies))
	copy(c.Dependencies, t.Dependencies)
	if t.Score != nil {
		score := *t.Score
		c.Score = &score
	}
	if t.Explanation != nil {
		explanation := *t.Explanation
		c.Explanation = &explanation
	}
	return c
}

// Scored reports whether the scoring service has assigned t a score.
func (t Task) Scored() bool {
	return t.Score != nil
}

// Priority classifies t by its score.
func (t Task) Priority() Priority {
	return Classify(t.Score)
}

func cloneAll(in []Task) []Task {
	out := make([]Task, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}
