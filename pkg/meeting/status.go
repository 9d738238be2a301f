package meeting

import (
	"fmt"

	mderrors "github.com/minutedapp/minuted/pkg/errors"
)

// Status is the processing state of a meeting. It is a closed enum; writes go
// through the transition table rather than free-form string updates.
type Status string

const (
	// StatusUploaded is the only initial state: audio accepted, nothing run yet.
	StatusUploaded Status = "uploaded"
	// StatusTranscribing marks an in-flight transcription stage.
	StatusTranscribing Status = "transcribing"
	// StatusTranscribed marks a completed transcription stage.
	StatusTranscribed Status = "transcribed"
	// StatusProcessing marks in-flight insight extraction and task persistence.
	StatusProcessing Status = "processing"
	// StatusProcessed is the terminal success state.
	StatusProcessed Status = "processed"
	// StatusTranscriptionError records a failed transcription stage. Re-enterable.
	StatusTranscriptionError Status = "transcription_error"
	// StatusProcessingError records a failed processing stage. Re-enterable.
	StatusProcessingError Status = "processing_error"
)

// transitions is the closed set of legal status moves. Error states transition
// back into the stage that failed, which is what makes a retry a re-entry
// rather than a special case.
var transitions = map[Status][]Status{
	StatusUploaded:           {StatusTranscribing},
	StatusTranscribing:       {StatusTranscribed, StatusTranscriptionError},
	StatusTranscribed:        {StatusProcessing},
	StatusProcessing:         {StatusProcessed, StatusProcessingError},
	StatusProcessed:          {},
	StatusTranscriptionError: {StatusTranscribing},
	StatusProcessingError:    {StatusTranscribing, StatusProcessing},
}

// runnableStatuses are the statuses from which a new pipeline run may start.
var runnableStatuses = []Status{StatusUploaded, StatusTranscriptionError, StatusProcessingError}

// Valid reports whether s is a member of the status vocabulary.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether s ends a run (success or a failure awaiting retry).
func (s Status) Terminal() bool {
	return s == StatusProcessed || s.Failed()
}

// Failed reports whether s is a stage-specific error status.
func (s Status) Failed() bool {
	return s == StatusTranscriptionError || s == StatusProcessingError
}

// Runnable reports whether a pipeline run may start from s.
func (s Status) Runnable() bool {
	for _, r := range runnableStatuses {
		if s == r {
			return true
		}
	}
	return false
}

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// CheckTransition returns a typed error when moving from s to next is illegal.
func (s Status) CheckTransition(next Status) error {
	if !s.Valid() {
		return fmt.Errorf("%w: unknown status %q", mderrors.ErrInvalidState, string(s))
	}
	if !next.Valid() {
		return fmt.Errorf("%w: unknown status %q", mderrors.ErrInvalidState, string(next))
	}
	if !s.CanTransition(next) {
		return fmt.Errorf("%w: cannot move from %q to %q", mderrors.ErrInvalidState, string(s), string(next))
	}
	return nil
}

// ParseStatus validates a raw status string from storage or an API request.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", mderrors.ErrValidation, raw)
	}
	return s, nil
}
