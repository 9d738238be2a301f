package calendar

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mderrors "github.com/minutedapp/minuted/pkg/errors"
	"github.com/minutedapp/minuted/pkg/logging"
	"github.com/minutedapp/minuted/pkg/task"
)

// fakeCalendar fails event creation for summaries listed in failFor.
type fakeCalendar struct {
	events  []*Event
	failFor map[string]bool
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, event *Event) (string, error) {
	if f.failFor[event.Summary] {
		return "", errors.New("calendar unavailable")
	}
	f.events = append(f.events, event)
	return fmt.Sprintf("evt-%d", len(f.events)), nil
}

type fakeRecorder struct {
	recorded map[string]string
}

func (f *fakeRecorder) SetCalendarEventID(ctx context.Context, id, eventID string) error {
	if f.recorded == nil {
		f.recorded = map[string]string{}
	}
	f.recorded[id] = eventID
	return nil
}

func newScheduler(cal Calendar, rec eventRecorder) *Scheduler {
	s := NewScheduler(cal, rec, logging.NewNopLogger())
	s.now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }
	return s
}

func pendingTask(id, name string, priority task.Priority, effort int) *task.Task {
	return &task.Task{ID: id, Name: name, Status: task.StatusPending, Priority: priority, Effort: effort}
}

func TestSchedule_PartialFailure(t *testing.T) {
	cal := &fakeCalendar{failFor: map[string]bool{"task-b": true, "task-d": true}}
	rec := &fakeRecorder{}
	s := newScheduler(cal, rec)

	tasks := []*task.Task{
		pendingTask("1", "task-a", task.PriorityHigh, 1),
		pendingTask("2", "task-b", task.PriorityMedium, 1),
		pendingTask("3", "task-c", task.PriorityMedium, 1),
		pendingTask("4", "task-d", task.PriorityLow, 1),
		pendingTask("5", "task-e", task.PriorityLow, 1),
	}

	summary, err := s.Schedule(context.Background(), tasks, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.ScheduledCount)
	assert.Equal(t, 2, summary.FailedCount)
	require.Len(t, summary.Outcomes, 5)

	// Each failed task carries its own error; successes carry event IDs.
	assert.NoError(t, summary.Outcomes[0].Err)
	assert.NotEmpty(t, summary.Outcomes[0].EventID)
	assert.Error(t, summary.Outcomes[1].Err)
	assert.Empty(t, summary.Outcomes[1].EventID)

	// Successful tasks get their event ID written back.
	assert.Len(t, rec.recorded, 3)
	assert.Equal(t, "evt-1", rec.recorded["1"])
}

func TestSchedule_SkipsCompleted(t *testing.T) {
	cal := &fakeCalendar{}
	s := newScheduler(cal, &fakeRecorder{})

	decision := &task.Task{ID: "1", Name: "decided", Status: task.StatusCompleted, Category: task.CategoryDecision}
	summary, err := s.Schedule(context.Background(), []*task.Task{decision, pendingTask("2", "todo", task.PriorityMedium, 1)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SkippedCount)
	assert.Equal(t, 1, summary.ScheduledCount)
	require.Len(t, cal.events, 1)
	assert.Equal(t, "todo", cal.events[0].Summary)
}

func TestSchedule_AutoDeadlineByPriority(t *testing.T) {
	cal := &fakeCalendar{}
	s := newScheduler(cal, &fakeRecorder{})
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	tasks := []*task.Task{
		pendingTask("1", "urgent", task.PriorityHigh, 1),
		pendingTask("2", "normal", task.PriorityMedium, 1),
		pendingTask("3", "later", task.PriorityLow, 1),
	}
	_, err := s.Schedule(context.Background(), tasks, nil)
	require.NoError(t, err)
	require.Len(t, cal.events, 3)

	assert.Equal(t, base.AddDate(0, 0, 1), cal.events[0].Start)
	assert.Equal(t, base.AddDate(0, 0, 3), cal.events[1].Start)
	assert.Equal(t, base.AddDate(0, 0, 7), cal.events[2].Start)
}

func TestSchedule_ExplicitDeadlineWins(t *testing.T) {
	cal := &fakeCalendar{}
	s := newScheduler(cal, &fakeRecorder{})

	deadline := time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC)
	tt := pendingTask("1", "dated", task.PriorityLow, 2)
	tt.Deadline = &deadline

	_, err := s.Schedule(context.Background(), []*task.Task{tt}, nil)
	require.NoError(t, err)
	require.Len(t, cal.events, 1)
	assert.Equal(t, deadline, cal.events[0].Start)
	assert.Equal(t, deadline.Add(4*time.Hour), cal.events[0].End)
}

func TestSchedule_PriorityColors(t *testing.T) {
	cal := &fakeCalendar{}
	s := newScheduler(cal, &fakeRecorder{})

	tasks := []*task.Task{
		pendingTask("1", "urgent", task.PriorityHigh, 1),
		pendingTask("2", "normal", task.PriorityMedium, 1),
		pendingTask("3", "later", task.PriorityLow, 1),
	}
	_, err := s.Schedule(context.Background(), tasks, nil)
	require.NoError(t, err)

	assert.Equal(t, "11", cal.events[0].ColorID)
	assert.Equal(t, "5", cal.events[1].ColorID)
	assert.Equal(t, "10", cal.events[2].ColorID)
}

func TestEventDuration(t *testing.T) {
	assert.Equal(t, 2*time.Hour, EventDuration(1))
	assert.Equal(t, 6*time.Hour, EventDuration(3))
	assert.Equal(t, 8*time.Hour, EventDuration(4))
	assert.Equal(t, 8*time.Hour, EventDuration(5))
	assert.Equal(t, time.Hour, EventDuration(0))
}

func TestValidateAttendees(t *testing.T) {
	assert.NoError(t, ValidateAttendees(nil))
	assert.NoError(t, ValidateAttendees([]string{"alice@example.com"}))

	err := ValidateAttendees([]string{"not-an-email"})
	assert.True(t, mderrors.IsValidation(err))

	err = ValidateAttendees([]string{"@example.com"})
	assert.True(t, mderrors.IsValidation(err))
}

func TestSchedule_RejectsInvalidAttendees(t *testing.T) {
	s := newScheduler(&fakeCalendar{}, &fakeRecorder{})
	_, err := s.Schedule(context.Background(), []*task.Task{pendingTask("1", "a", task.PriorityLow, 1)}, []string{"Bob"})
	assert.True(t, mderrors.IsValidation(err))
}

func TestSchedule_AttendeesOnEvents(t *testing.T) {
	cal := &fakeCalendar{}
	s := newScheduler(cal, &fakeRecorder{})

	_, err := s.Schedule(context.Background(),
		[]*task.Task{pendingTask("1", "a", task.PriorityLow, 1)},
		[]string{"alice@example.com", "bob@example.com"})
	require.NoError(t, err)
	require.Len(t, cal.events, 1)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, cal.events[0].Attendees)
}
