package tasks

import (
	"math"
	"strconv"
	"strings"
)

// Fields are the raw values of a single task entry, as typed by the user.
type Fields struct {
	Title          string
	DueDate        string
	EstimatedHours string
	Importance     string
	Dependencies   string // comma-separated task ids
}

// parse validates f and builds a task without an id.
func (f Fields) parse() (Task, error) {
	title := strings.TrimSpace(f.Title)
	if title == "" {
		return Task{}, &ValidationError{Field: "title", Reason: "required"}
	}

	due := strings.TrimSpace(f.DueDate)
	if due == "" {
		return Task{}, &ValidationError{Field: "due_date", Reason: "required"}
	}

	hoursRaw := strings.TrimSpace(f.EstimatedHours)
	if hoursRaw == "" {
		return Task{}, &ValidationError{Field: "estimated_hours", Reason: "required"}
	}
	hours, err := strconv.ParseFloat(hoursRaw, 64)
	if err != nil || math.IsNaN(hours) || math.IsInf(hours, 0) {
		return Task{}, &ValidationError{Field: "estimated_hours", Value: hoursRaw, Reason: "not a number"}
	}
	if hours < 0 {
		return Task{}, &ValidationError{Field: "estimated_hours", Value: hoursRaw, Reason: "must not be negative"}
	}

	importanceRaw := strings.TrimSpace(f.Importance)
	if importanceRaw == "" {
		return Task{}, &ValidationError{Field: "importance", Reason: "required"}
	}
	importance, err := strconv.Atoi(importanceRaw)
	if err != nil {
		return Task{}, &ValidationError{Field: "importance", Value: importanceRaw, Reason: "not an integer"}
	}

	deps, err := ParseDependencies(f.Dependencies)
	if err != nil {
		return Task{}, err
	}

	return Task{
		Title:          title,
		DueDate:        due,
		EstimatedHours: hours,
		Importance:     importance,
		Dependencies:   deps,
	}, nil
}

// ParseDependencies splits a comma-separated list of task ids. Blank entries
// are dropped; the result is never nil.
func ParseDependencies(raw string) ([]TaskID, error) {
	deps := make([]TaskID, 0)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, &ValidationError{Field: "dependencies", Value: part, Reason: "not a task id"}
		}
		deps = append(deps, TaskID(n))
	}
	return deps, nil
}
