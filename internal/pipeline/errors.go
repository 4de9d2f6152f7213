package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/TedTes/genres-sub000/internal/fetch"
	"github.com/TedTes/genres-sub000/internal/llm"
	"github.com/TedTes/genres-sub000/internal/repair"
	"github.com/TedTes/genres-sub000/internal/types"
)

// Stage names, in execution order
const (
	StageValidate    = "validate"
	StageCacheLookup = "cache_lookup"
	StageIngestion   = "ingestion"
	StageGapAnalysis = "gap_analysis"
	StageRewrite     = "rewrite"
	StageExplanation = "explanation"
	StageGuardrails  = "guardrails"
	StageScoring     = "scoring"
	StageArtifacts   = "artifacts"
	StageFinalize    = "finalize"
)

// StageError is the only error Optimize returns. It names the failing stage
// and whether resubmitting the same request may succeed.
type StageError struct {
	Stage     string
	Retryable bool
	Cause     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// AsStageError extracts a StageError from err.
func AsStageError(err error) (*StageError, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsAborted reports whether the request was abandoned by its caller.
func IsAborted(err error) bool {
	return errors.Is(err, context.Canceled)
}

func newStageError(stage string, err error) error {
	if err == nil {
		return nil
	}
	if se, ok := AsStageError(err); ok {
		return se
	}
	return &StageError{Stage: stage, Retryable: retryable(err), Cause: err}
}

// retryable decides whether the caller may usefully resubmit.
func retryable(err error) bool {
	var fe *fetch.Error
	switch {
	case types.IsInputValidation(err):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true
	case llm.IsServiceUnavailable(err), llm.IsTransient(err):
		return true
	case repair.IsSchemaValidation(err):
		return true
	case errors.As(err, &fe):
		return fe.Retryable
	default:
		return false
	}
}
