package tasks

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is matched by every single-entry validation failure.
	ErrValidation = errors.New("please fill all required fields correctly")

	// ErrInvalidBulk is matched by every rejected bulk payload.
	ErrInvalidBulk = errors.New("invalid bulk tasks")

	// ErrMalformedScored is returned when a scoring response is not a
	// sequence of task records.
	ErrMalformedScored = errors.New("malformed scored tasks")
)

// ValidationError describes the first invalid field of a single task entry.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// BulkError lists every structural problem found in a bulk payload.
type BulkError struct {
	Problems []string
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidBulk, strings.Join(e.Problems, "; "))
}

func (e *BulkError) Unwrap() error {
	return ErrInvalidBulk
}
