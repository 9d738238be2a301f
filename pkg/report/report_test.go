package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/minutedapp/minuted/pkg/meeting"
	"github.com/minutedapp/minuted/pkg/task"
)

func sampleMeeting() *meeting.Meeting {
	transcript := "We decided to ship v2 on Friday."
	duration := 180
	return &meeting.Meeting{
		ID:         "m1",
		Title:      "Sprint planning",
		Status:     meeting.StatusProcessed,
		FileName:   "planning.wav",
		Transcript: &transcript,
		Duration:   &duration,
		Timeline: &meeting.Timeline{
			Segments: []meeting.Segment{
				{Minute: 1, Summary: "Kickoff", Topics: []string{"release"}},
				{Minute: 2, Summary: "Scope discussion", Decisions: []string{"ship v2 Friday"}},
			},
			OverallSummary: "Planned the v2 release.",
			MeetingType:    "planning",
			Participants:   []string{"Alice", "Bob"},
		},
	}
}

func sampleTasks() []*task.Task {
	deadline := time.Date(2026, 3, 9, 17, 0, 0, 0, time.UTC)
	eventID := "evt-1"
	return []*task.Task{
		{
			Name:            "Update the docs",
			Owner:           "Alice",
			Status:          task.StatusPending,
			Priority:        task.PriorityHigh,
			Category:        task.CategoryActionItem,
			Deadline:        &deadline,
			Effort:          2,
			CalendarEventID: &eventID,
		},
		{
			Name:     "Ship v2 on Friday",
			Status:   task.StatusCompleted,
			Priority: task.PriorityMedium,
			Category: task.CategoryDecision,
			Effort:   1,
		},
	}
}

func buildWorkbook(t *testing.T) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, NewBuilder().WriteTo(&buf, sampleMeeting(), sampleTasks()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestBuild_Sheets(t *testing.T) {
	f := buildWorkbook(t)
	assert.ElementsMatch(t, []string{"Summary", "Timeline", "Tasks"}, f.GetSheetList())
}

func TestBuild_SummarySheet(t *testing.T) {
	f := buildWorkbook(t)

	rows, err := f.GetRows("Summary")
	require.NoError(t, err)

	got := map[string]string{}
	for _, row := range rows {
		if len(row) >= 2 {
			got[row[0]] = row[1]
		}
	}
	assert.Equal(t, "Sprint planning", got["Meeting"])
	assert.Equal(t, "processed", got["Status"])
	assert.Equal(t, "2", got["Tasks"])
	assert.Equal(t, "Alice, Bob", got["Participants"])
}

func TestBuild_TasksSheet(t *testing.T) {
	f := buildWorkbook(t)

	rows, err := f.GetRows("Tasks")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Task", rows[0][0])
	assert.Equal(t, "Update the docs", rows[1][0])
	assert.Equal(t, "2026-03-09 17:00", rows[1][5])
	assert.Equal(t, "evt-1", rows[1][8])
	assert.Equal(t, "completed", rows[2][2])
}

func TestBuild_TimelineSheet(t *testing.T) {
	f := buildWorkbook(t)

	rows, err := f.GetRows("Timeline")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "ship v2 Friday", rows[2][3])
}

func TestBuild_NoTimeline(t *testing.T) {
	m := sampleMeeting()
	m.Timeline = nil

	var buf bytes.Buffer
	require.NoError(t, NewBuilder().WriteTo(&buf, m, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.NotContains(t, f.GetSheetList(), "Timeline")
}
