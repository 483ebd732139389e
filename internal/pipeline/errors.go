package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/puget/internal/config"
)

// StageError reports a stage that did not complete.
type StageError struct {
	// Code identifies the error category.
	Code StageErrorCode

	// Stage names the failed stage.
	Stage string

	// RunID identifies the run.
	RunID string

	// Message is a human-readable description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// StageErrorCode categorizes stage failures.
type StageErrorCode string

const (
	// ErrCodeStageFailed indicates the stage returned an error.
	ErrCodeStageFailed StageErrorCode = "STAGE_FAILED"

	// ErrCodeCanceled indicates the context ended before or during the stage.
	ErrCodeCanceled StageErrorCode = "CANCELED"

	// ErrCodeNoTable indicates the stage returned no table.
	ErrCodeNoTable StageErrorCode = "NO_TABLE"

	// ErrCodeConfig indicates the stage rejected its configuration.
	ErrCodeConfig StageErrorCode = "CONFIG"
)

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.RunID != "" {
		return fmt.Sprintf("%s: stage %s: %s (run=%s)", e.Code, e.Stage, e.Message, e.RunID)
	}
	return fmt.Sprintf("%s: stage %s: %s", e.Code, e.Stage, e.Message)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// stageError classifies err returned by (or observed before) a stage.
func stageError(stage, runID string, err error) *StageError {
	code := ErrCodeStageFailed
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = ErrCodeCanceled
	case config.IsConfigError(err):
		code = ErrCodeConfig
	}
	return &StageError{Code: code, Stage: stage, RunID: runID, Message: err.Error(), Err: err}
}

// IsStageError returns true if err is or wraps a StageError.
func IsStageError(err error) bool {
	var se *StageError
	return errors.As(err, &se)
}

// IsCanceled returns true if a stage did not run because the context ended.
// Uses errors.As to handle wrapped errors.
func IsCanceled(err error) bool {
	var se *StageError
	if errors.As(err, &se) {
		return se.Code == ErrCodeCanceled
	}
	return false
}

// FailedStage returns the name of the stage err reports, or "".
func FailedStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
