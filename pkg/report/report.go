// Package report renders a processed meeting and its tasks into an xlsx
// workbook for sharing outside the service.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/minutedapp/minuted/pkg/meeting"
	"github.com/minutedapp/minuted/pkg/task"
)

const (
	sheetSummary  = "Summary"
	sheetTimeline = "Timeline"
	sheetTasks    = "Tasks"
)

// Builder renders meeting reports.
type Builder struct {
	now func() time.Time
}

// NewBuilder creates a Builder.
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// Build renders the meeting and its tasks into a workbook. The caller owns
// the returned file and must Close it.
func (b *Builder) Build(m *meeting.Meeting, tasks []*task.Task) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := b.writeSummary(f, m, tasks); err != nil {
		f.Close()
		return nil, err
	}
	if err := b.writeTimeline(f, m.Timeline); err != nil {
		f.Close()
		return nil, err
	}
	if err := b.writeTasks(f, tasks); err != nil {
		f.Close()
		return nil, err
	}

	// Drop the default sheet so the workbook opens on the summary.
	idx, err := f.GetSheetIndex(sheetSummary)
	if err != nil {
		f.Close()
		return nil, err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// WriteTo renders the report and writes the workbook to w.
func (b *Builder) WriteTo(w io.Writer, m *meeting.Meeting, tasks []*task.Task) error {
	f, err := b.Build(m, tasks)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func (b *Builder) writeSummary(f *excelize.File, m *meeting.Meeting, tasks []*task.Task) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return err
	}

	rows := [][]interface{}{
		{"Meeting", m.Title},
		{"Status", string(m.Status)},
		{"Recorded file", m.FileName},
		{"Generated", b.now().UTC().Format(time.RFC3339)},
		{"Transcript length", m.TranscriptLength()},
		{"Tasks", len(tasks)},
	}
	if m.Duration != nil {
		rows = append(rows, []interface{}{"Duration (seconds)", *m.Duration})
	}
	if m.Language != nil {
		rows = append(rows, []interface{}{"Language", *m.Language})
	}
	if m.Timeline != nil {
		rows = append(rows,
			[]interface{}{"Meeting type", m.Timeline.MeetingType},
			[]interface{}{"Participants", strings.Join(m.Timeline.Participants, ", ")},
			[]interface{}{"Overall summary", m.Timeline.OverallSummary},
			[]interface{}{"Key decisions", strings.Join(m.Timeline.KeyDecisions, "; ")},
			[]interface{}{"Next steps", strings.Join(m.Timeline.NextSteps, "; ")},
			[]interface{}{"Blockers", strings.Join(m.Timeline.Blockers, "; ")},
		)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetSummary, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) writeTimeline(f *excelize.File, tl *meeting.Timeline) error {
	if tl == nil || len(tl.Segments) == 0 {
		return nil
	}
	if _, err := f.NewSheet(sheetTimeline); err != nil {
		return err
	}

	header := []interface{}{"Minute", "Summary", "Key points", "Decisions", "Action items", "Speakers", "Topics"}
	if err := f.SetSheetRow(sheetTimeline, "A1", &header); err != nil {
		return err
	}

	for i, seg := range tl.Segments {
		row := []interface{}{
			seg.Minute,
			seg.Summary,
			strings.Join(seg.KeyPoints, "; "),
			strings.Join(seg.Decisions, "; "),
			strings.Join(seg.ActionItems, "; "),
			strings.Join(seg.Speakers, ", "),
			strings.Join(seg.Topics, ", "),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetTimeline, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) writeTasks(f *excelize.File, tasks []*task.Task) error {
	if _, err := f.NewSheet(sheetTasks); err != nil {
		return err
	}

	header := []interface{}{"Task", "Owner", "Status", "Priority", "Category", "Deadline", "Effort", "Description", "Calendar event"}
	if err := f.SetSheetRow(sheetTasks, "A1", &header); err != nil {
		return err
	}

	for i, t := range tasks {
		deadline := ""
		if t.Deadline != nil {
			deadline = t.Deadline.UTC().Format("2006-01-02 15:04")
		}
		eventID := ""
		if t.CalendarEventID != nil {
			eventID = *t.CalendarEventID
		}
		row := []interface{}{
			t.Name,
			t.Owner,
			string(t.Status),
			string(t.Priority),
			string(t.Category),
			deadline,
			t.Effort,
			t.Description,
			eventID,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetTasks, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
