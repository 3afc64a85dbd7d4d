package common

import (
	"errors"
	"fmt"

	"github.com/factura-labs/invoice-pipeline/constants"
)

// Sentinel errors for the query and persistence surface. These are returned
// to callers as-is so the server layer can map them to distinct responses.
var (
	ErrJobNotFound        = errors.New("job not found")
	ErrJobNotReady        = errors.New("job result not ready")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrInvalidInput       = errors.New("invalid input")
)

// StageError is a pipeline stage failure. It is recorded into the job state
// by the orchestrator and never propagated past that boundary.
type StageError struct {
	Stage   constants.Stage
	Message string
	Cause   error
}

func (e *StageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// NewStageError builds a StageError for the given stage.
func NewStageError(stage constants.Stage, message string, cause error) *StageError {
	return &StageError{Stage: stage, Message: message, Cause: cause}
}

// IngestionError marks a failure during document ingestion/validation.
func IngestionError(message string, cause error) *StageError {
	return NewStageError(constants.StageIngestion, message, cause)
}

// ExtractionError marks a failure during text extraction.
func ExtractionError(message string, cause error) *StageError {
	return NewStageError(constants.StageExtraction, message, cause)
}

// LLMExtractionError marks a failure during LLM field extraction, including
// transport errors and timeouts from the completion call.
func LLMExtractionError(message string, cause error) *StageError {
	return NewStageError(constants.StageLLM, message, cause)
}

// JobFailedError is returned by the result query for jobs that reached
// FAILED, carrying the first recorded stage error as a readable reason.
type JobFailedError struct {
	Reason string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job failed: %s", e.Reason)
}

// WrapError annotates err with a message, preserving the chain.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
