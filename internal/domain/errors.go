package domain

import (
	"errors"
	"fmt"
)

// Expected user-facing outcomes. Both are handled inside the pipeline and
// always acknowledged, never dead-lettered.
var (
	// ErrNotLinked means the sender address has no linked backend account.
	ErrNotLinked = errors.New("sender not linked to an account")

	// ErrUninterpretable means the interpreter could not produce a usable
	// draft (no JSON object, or no positive value).
	ErrUninterpretable = errors.New("message could not be interpreted")
)

// ValidationError names the first draft field that is missing or invalid.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid transaction: field %q missing or invalid", e.Field)
}

// ExtractionError wraps a failure of the image text-extraction stage.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string { return fmt.Sprintf("text extraction: %v", e.Err) }
func (e *ExtractionError) Unwrap() error { return e.Err }

// SubmissionError is a non-404 ledger failure or a transport failure on any
// backend call. Status is 0 for pure transport errors.
type SubmissionError struct {
	Status int
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend unreachable: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
