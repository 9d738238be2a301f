// Package meeting defines the meeting aggregate, its processing status
// machine, and its persistence gateway.
package meeting

import (
	"time"
)

// Meeting is the aggregate record for one recorded session. Status,
// transcript, timeline, and error fields are mutated exclusively by the
// pipeline orchestrator; title by explicit user edits.
type Meeting struct {
	ID           string
	Title        string
	Transcript   *string
	Timeline     *Timeline
	FilePath     string
	FileName     string
	FileSize     int64
	Duration     *int // seconds
	Language     *string
	Confidence   *float64
	Status       Status
	ErrorMessage *string
	UserID       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TranscriptLength returns the stored transcript's length, zero when unset.
func (m *Meeting) TranscriptLength() int {
	if m.Transcript == nil {
		return 0
	}
	return len(*m.Transcript)
}

// CanRetry reports whether a caller may re-run the pipeline for this meeting.
func (m *Meeting) CanRetry() bool {
	return m.Status.Failed()
}

// Timeline is the per-minute structured breakdown of a meeting plus
// meeting-level aggregates.
type Timeline struct {
	Segments       []Segment `json:"timeline"`
	OverallSummary string    `json:"overall_summary"`
	KeyDecisions   []string  `json:"key_decisions"`
	ActionItems    []string  `json:"action_items"`
	Participants   []string  `json:"participants"`
	MeetingType    string    `json:"meeting_type"`
	NextSteps      []string  `json:"next_steps"`
	Blockers       []string  `json:"blockers"`
	SuccessMetrics []string  `json:"success_metrics"`
}

// Segment is one minute of the meeting.
type Segment struct {
	Minute      int      `json:"minute"`
	Summary     string   `json:"summary"`
	KeyPoints   []string `json:"key_points"`
	Decisions   []string `json:"decisions"`
	ActionItems []string `json:"action_items"`
	Speakers    []string `json:"speakers"`
	Topics      []string `json:"topics"`
}

// TranscriptionDetail is the provider metadata captured alongside a
// transcript and persisted onto the meeting record.
type TranscriptionDetail struct {
	Transcript string
	Confidence float64
	Duration   int // seconds
	Language   string
}
