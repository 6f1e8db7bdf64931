package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrNothingToAnalyze is returned when the store is empty. No request is made.
	ErrNothingToAnalyze = errors.New("no tasks to analyze")

	// ErrInFlight is returned when an invocation is already running.
	ErrInFlight = errors.New("analysis already in progress")

	// ErrAnalyzeFailed matches a StepError from the analyze request.
	ErrAnalyzeFailed = errors.New("analyze failed")

	// ErrSuggestFailed matches a StepError from the suggest request. The store
	// already holds the analyze result when this is reported.
	ErrSuggestFailed = errors.New("suggest failed")
)

// Step names the remote call an invocation failed in.
type Step string

const (
	StepAnalyze Step = "analyze"
	StepSuggest Step = "suggest"
)

// StepError is a failed remote call within an invocation.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Is matches ErrAnalyzeFailed or ErrSuggestFailed by step.
func (e *StepError) Is(target error) bool {
	switch target {
	case ErrAnalyzeFailed:
		return e.Step == StepAnalyze
	case ErrSuggestFailed:
		return e.Step == StepSuggest
	}
	return false
}
