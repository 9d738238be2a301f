package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a classified pipeline failure.
type ErrorCode string

const (
	// ErrInput covers missing or too-small audio and missing identifiers.
	ErrInput ErrorCode = "input_error"
	// ErrRateLimited is a provider 429 / quota response.
	ErrRateLimited ErrorCode = "rate_limited"
	// ErrTimeout is a request that exceeded its time limit.
	ErrTimeout ErrorCode = "timeout"
	// ErrConnection is a network-level failure (refused, reset, no route).
	ErrConnection ErrorCode = "connection_failed"
	// ErrMalformedResponse is a 200 response with unusable content.
	ErrMalformedResponse ErrorCode = "malformed_response"
	// ErrPayloadTooLarge is a provider 413 response.
	ErrPayloadTooLarge ErrorCode = "payload_too_large"
	// ErrConfiguration is a missing API credential or endpoint.
	ErrConfiguration ErrorCode = "configuration_error"
	// ErrPersistence is a failed database write; the transaction was rolled back.
	ErrPersistence ErrorCode = "persistence_error"
	// ErrProvider is an unclassified provider-side failure.
	ErrProvider ErrorCode = "provider_error"
)

// StageError is a structured error for pipeline stage failures. The Message is
// written to the meeting's error_message column, so it must stand on its own
// for a caller polling status.
type StageError struct {
	Code    ErrorCode
	Stage   string
	Message string
	Cause   error
}

func (e *StageError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// NewStageError builds a StageError with a formatted message.
func NewStageError(code ErrorCode, stage, format string, args ...interface{}) *StageError {
	return &StageError{
		Code:    code,
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
	}
}

// AsStageError extracts a *StageError from err's chain, if present.
func AsStageError(err error) (*StageError, bool) {
	var se *StageError
	ok := errors.As(err, &se)
	return se, ok
}

// Classify inspects an error and returns a *StageError with the appropriate
// code. If the error doesn't match any known pattern, it returns a StageError
// with ErrProvider.
func Classify(err error, stage string) *StageError {
	if err == nil {
		return nil
	}

	if se, ok := AsStageError(err); ok {
		if se.Stage == "" {
			se.Stage = stage
		}
		return se
	}

	se := &StageError{
		Stage: stage,
		Cause: err,
	}

	if errors.Is(err, context.DeadlineExceeded) {
		se.Code = ErrTimeout
		se.Message = "operation timed out"
		return se
	}
	if errors.Is(err, context.Canceled) {
		se.Code = ErrConnection
		se.Message = "operation cancelled"
		return se
	}
	if errors.Is(err, ErrNotConfigured) {
		se.Code = ErrConfiguration
		se.Message = err.Error()
		return se
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "rate limit"), strings.Contains(lower, "429"),
		strings.Contains(lower, "too many requests"), strings.Contains(lower, "quota"):
		se.Code = ErrRateLimited
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "timed out"),
		strings.Contains(lower, "deadline"):
		se.Code = ErrTimeout
	case strings.Contains(lower, "connection refused"), strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "no such host"), strings.Contains(lower, "broken pipe"):
		se.Code = ErrConnection
	case strings.Contains(lower, "too large"), strings.Contains(lower, "413"):
		se.Code = ErrPayloadTooLarge
	default:
		se.Code = ErrProvider
	}
	se.Message = msg
	return se
}

// IsRetryableError reports whether err is a transient failure worth retrying,
// per the error code registry. Errors that are not StageErrors are not retried.
func IsRetryableError(err error) bool {
	se, ok := AsStageError(err)
	if !ok {
		return false
	}
	return IsRetryable(se.Code)
}
