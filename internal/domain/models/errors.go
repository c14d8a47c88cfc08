package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrNoTrials         = errors.New("no completed trials")
	ErrExplainDisabled  = errors.New("explainability is disabled")
	ErrNotClassifier    = errors.New("model does not produce probabilities")
	ErrTrainingBusy     = errors.New("a training run is already in progress")
)

// InsufficientDataError means the sample count cannot support the request.
type InsufficientDataError struct {
	Stage string
	Need  int
	Have  int
	Err   error
}

func (e *InsufficientDataError) Error() string {
	msg := fmt.Sprintf("%s: insufficient data: need %d, have %d", e.Stage, e.Need, e.Have)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InsufficientDataError) Unwrap() error { return e.Err }

// SchemaValidationError reports a bad input column or value.
type SchemaValidationError struct {
	Field     string
	Index     int
	Timestamp time.Time
	Reason    string
}

func (e *SchemaValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("schema validation: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("schema validation: %s at index %d (%s): %s",
		e.Field, e.Index, e.Timestamp.Format(time.RFC3339), e.Reason)
}

// TrialExecutionError wraps a single trial failure. It never escapes the searcher.
type TrialExecutionError struct {
	Trial int
	Err   error
}

func (e *TrialExecutionError) Error() string {
	return fmt.Sprintf("trial %d: %v", e.Trial, e.Err)
}

func (e *TrialExecutionError) Unwrap() error { return e.Err }

// ArtifactIOError is any persistence or load failure.
type ArtifactIOError struct {
	ID  string
	Op  string
	Err error
}

func (e *ArtifactIOError) Error() string {
	return fmt.Sprintf("artifact %s %s: %v", e.ID, e.Op, e.Err)
}

func (e *ArtifactIOError) Unwrap() error { return e.Err }

// StageError carries the failing stage and position of a fatal pipeline error.
type StageError struct {
	Stage     string
	Index     int
	Timestamp time.Time
	Err       error
}

func (e *StageError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s at index %d (%s): %v",
		e.Stage, e.Index, e.Timestamp.Format(time.RFC3339), e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// IsInputError reports whether err stems from caller input rather than the system.
func IsInputError(err error) bool {
	var ide *InsufficientDataError
	var sve *SchemaValidationError
	return errors.As(err, &ide) || errors.As(err, &sve)
}
