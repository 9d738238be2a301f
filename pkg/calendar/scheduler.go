package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	mderrors "github.com/minutedapp/minuted/pkg/errors"
	"github.com/minutedapp/minuted/pkg/logging"
	"github.com/minutedapp/minuted/pkg/task"
)

// Color IDs used for task events, keyed by priority.
const (
	colorHigh   = "11" // red
	colorMedium = "5"  // yellow
	colorLow    = "10" // green
)

// Outcome records what happened to one task during scheduling.
type Outcome struct {
	TaskID   string
	TaskName string
	EventID  string
	Err      error
}

// Summary aggregates a scheduling pass over one meeting's tasks.
type Summary struct {
	Outcomes       []Outcome
	ScheduledCount int
	FailedCount    int
	SkippedCount   int
}

// eventRecorder is the slice of the task repository the scheduler needs to
// write event IDs back.
type eventRecorder interface {
	SetCalendarEventID(ctx context.Context, id, eventID string) error
}

// Scheduler places tasks on a calendar. Scheduling is best effort: each task
// gets its own outcome, failures are counted, and nothing here fails the
// pipeline run.
type Scheduler struct {
	calendar Calendar
	recorder eventRecorder
	now      func() time.Time
	logger   logging.Logger
}

// NewScheduler creates a Scheduler writing event IDs back through recorder.
func NewScheduler(cal Calendar, recorder eventRecorder, logger logging.Logger) *Scheduler {
	return &Scheduler{
		calendar: cal,
		recorder: recorder,
		now:      time.Now,
		logger:   logger.With(logging.F("component", "scheduler")),
	}
}

// ValidateAttendees checks that every attendee is a plausible email address.
// Attendees are always supplied explicitly by the caller, never inferred from
// task owner names.
func ValidateAttendees(attendees []string) error {
	for _, a := range attendees {
		at := strings.Index(a, "@")
		if at <= 0 || !strings.Contains(a[at:], ".") {
			return fmt.Errorf("%w: %q is not a valid attendee email", mderrors.ErrValidation, a)
		}
	}
	return nil
}

// Schedule creates one event per actionable task. Completed tasks (including
// decisions) are skipped. Tasks without a deadline get one derived from
// priority. Failures to create an event or record its ID mark that task
// failed and move on.
func (s *Scheduler) Schedule(ctx context.Context, tasks []*task.Task, attendees []string) (*Summary, error) {
	if err := ValidateAttendees(attendees); err != nil {
		return nil, err
	}

	summary := &Summary{}
	for _, t := range tasks {
		if t.Status == task.StatusCompleted {
			summary.SkippedCount++
			continue
		}

		outcome := Outcome{TaskID: t.ID, TaskName: t.Name}
		event := s.buildEvent(t, attendees)

		eventID, err := s.calendar.CreateEvent(ctx, event)
		if err == nil {
			err = s.recorder.SetCalendarEventID(ctx, t.ID, eventID)
		}

		if err != nil {
			outcome.Err = err
			summary.FailedCount++
			s.logger.Warn("Failed to schedule task",
				logging.Err(err),
				logging.F("task_id", t.ID),
				logging.F("task_name", t.Name))
		} else {
			outcome.EventID = eventID
			summary.ScheduledCount++
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
	}

	s.logger.Info("Scheduling pass finished",
		logging.F("scheduled", summary.ScheduledCount),
		logging.F("failed", summary.FailedCount),
		logging.F("skipped", summary.SkippedCount))
	return summary, nil
}

// buildEvent derives the event window and appearance from the task.
func (s *Scheduler) buildEvent(t *task.Task, attendees []string) *Event {
	deadline := s.effectiveDeadline(t)
	duration := EventDuration(t.Effort)

	return &Event{
		Summary:     t.Name,
		Description: eventDescription(t),
		Start:       deadline,
		End:         deadline.Add(duration),
		ColorID:     priorityColor(t.Priority),
		Attendees:   attendees,
	}
}

// effectiveDeadline returns the task deadline, or one derived from priority
// when none was extracted: high gets tomorrow, medium three days, low a week.
func (s *Scheduler) effectiveDeadline(t *task.Task) time.Time {
	if t.Deadline != nil {
		return *t.Deadline
	}
	now := s.now().UTC()
	switch t.Priority {
	case task.PriorityHigh:
		return now.AddDate(0, 0, 1)
	case task.PriorityLow:
		return now.AddDate(0, 0, 7)
	default:
		return now.AddDate(0, 0, 3)
	}
}

// EventDuration maps the 1-5 effort scale to an event length of two hours per
// point, clamped to [1h, 8h].
func EventDuration(effort int) time.Duration {
	hours := effort * 2
	if hours < 1 {
		hours = 1
	}
	if hours > 8 {
		hours = 8
	}
	return time.Duration(hours) * time.Hour
}

func priorityColor(p task.Priority) string {
	switch p {
	case task.PriorityHigh:
		return colorHigh
	case task.PriorityLow:
		return colorLow
	default:
		return colorMedium
	}
}

// eventDescription assembles the event body from task metadata.
func eventDescription(t *task.Task) string {
	var b strings.Builder
	if t.Description != "" {
		b.WriteString(t.Description)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Priority: %s\n", t.Priority)
	fmt.Fprintf(&b, "Category: %s\n", t.Category)
	fmt.Fprintf(&b, "Effort: %d/5\n", t.Effort)
	if t.Owner != "" {
		fmt.Fprintf(&b, "Owner: %s\n", t.Owner)
	}
	if len(t.Dependencies) > 0 {
		fmt.Fprintf(&b, "Depends on: %s\n", strings.Join(t.Dependencies, ", "))
	}
	if len(t.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(t.Tags, ", "))
	}
	if t.Context != "" {
		fmt.Fprintf(&b, "\nFrom the meeting: %q\n", t.Context)
	}
	return b.String()
}
