package insight

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mderrors "github.com/minutedapp/minuted/pkg/errors"
	"github.com/minutedapp/minuted/pkg/logging"
	"github.com/minutedapp/minuted/pkg/task"
)

// scriptedModel returns canned responses keyed by a substring of the prompt.
type scriptedModel struct {
	response string
	err      error
	prompts  []string
}

func (m *scriptedModel) Name() string { return "scripted" }

func (m *scriptedModel) Complete(ctx context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.response, m.err
}

func newExtractor(response string) (*Extractor, *scriptedModel) {
	model := &scriptedModel{response: response}
	return NewExtractor(model, logging.NewNopLogger()), model
}

func TestSegmentCount(t *testing.T) {
	// Duration wins when present, rounded up to whole minutes.
	assert.Equal(t, 5, SegmentCount("whatever", 300))
	assert.Equal(t, 6, SegmentCount("whatever", 301))
	assert.Equal(t, 1, SegmentCount("whatever", 10))

	// Without a duration, estimate from line count, never below one.
	assert.Equal(t, 1, SegmentCount("one line", 0))
	long := strings.Repeat("line\n", 49) + "line"
	assert.Equal(t, 10, SegmentCount(long, 0))
}

func TestExtractTimeline_StrictJSON(t *testing.T) {
	e, _ := newExtractor(`{
		"timeline": [{"minute": 1, "summary": "kickoff", "key_points": ["budget"], "decisions": [], "action_items": [], "speakers": ["Alice"], "topics": ["planning"]}],
		"overall_summary": "Planning session.",
		"key_decisions": ["ship v2 Friday"],
		"action_items": ["update docs"],
		"participants": ["Alice", "Bob"],
		"meeting_type": "planning",
		"next_steps": [],
		"blockers": [],
		"success_metrics": []
	}`)

	timeline, err := e.ExtractTimeline(context.Background(), "transcript", 60)
	require.NoError(t, err)
	require.Len(t, timeline.Segments, 1)
	assert.Equal(t, "kickoff", timeline.Segments[0].Summary)
	assert.Equal(t, []string{"ship v2 Friday"}, timeline.KeyDecisions)
	assert.Equal(t, "planning", timeline.MeetingType)
}

func TestExtractTimeline_ProseWrappedJSON(t *testing.T) {
	e, _ := newExtractor(`Here is the timeline you asked for:

` + "```json\n" + `{"timeline": [{"minute": 1, "summary": "intro"}], "overall_summary": "Short."}` + "\n```\n\nLet me know if you need anything else.")

	timeline, err := e.ExtractTimeline(context.Background(), "transcript", 60)
	require.NoError(t, err)
	require.Len(t, timeline.Segments, 1)
	assert.Equal(t, "intro", timeline.Segments[0].Summary)
}

func TestExtractTimeline_NoJSONFails(t *testing.T) {
	e, _ := newExtractor("I could not process that transcript, sorry.")

	_, err := e.ExtractTimeline(context.Background(), "transcript", 60)
	require.Error(t, err)
	se, ok := mderrors.AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, mderrors.ErrMalformedResponse, se.Code)
	assert.False(t, mderrors.IsRetryableError(err), "extraction failures are terminal")
}

func TestExtractTimeline_EmptySegmentsFails(t *testing.T) {
	e, _ := newExtractor(`{"timeline": [], "overall_summary": "nothing"}`)

	_, err := e.ExtractTimeline(context.Background(), "transcript", 60)
	require.Error(t, err)
	se, ok := mderrors.AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, mderrors.ErrMalformedResponse, se.Code)
}

func TestExtractTasks(t *testing.T) {
	e, _ := newExtractor(`[
		{"task": "Update the docs", "description": "Refresh onboarding pages", "owner": "Alice", "priority": "high", "category": "work", "deadline": "Monday", "effort": 2, "tags": ["docs"], "context": "Alice will update the docs by Monday."},
		{"task": "", "description": "nameless entries are dropped"},
		{"task": "Review budget", "priority": "urgent", "category": "nonsense", "effort": 99}
	]`)

	drafts, err := e.ExtractTasks(context.Background(), "transcript")
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	assert.Equal(t, "Update the docs", drafts[0].Name)
	assert.Equal(t, "Alice", drafts[0].Owner)
	assert.Equal(t, task.PriorityHigh, drafts[0].Priority)
	assert.Equal(t, task.CategoryWork, drafts[0].Category)
	assert.Equal(t, "Monday", drafts[0].DeadlineExpression)
	assert.Equal(t, 2, drafts[0].Effort)

	// Unknown priority and category normalize; effort clamps to the scale.
	assert.Equal(t, task.PriorityMedium, drafts[1].Priority)
	assert.Equal(t, task.CategoryActionItem, drafts[1].Category)
	assert.Equal(t, 5, drafts[1].Effort)
}

func TestExtractOutcomes(t *testing.T) {
	e, _ := newExtractor(`{
		"decisions": [{"text": "Ship v2 on Friday", "owner": "Bob", "priority": "high", "context": "We decided to ship v2 on Friday."}],
		"action_items": [{"text": "Update the docs", "owner": "Alice", "deadline": "Monday", "priority": "medium"}],
		"unresolved_questions": [{"text": "Is the budget approved?"}],
		"summary": "Release planning."
	}`)

	outcomes, err := e.ExtractOutcomes(context.Background(), "transcript")
	require.NoError(t, err)
	require.Len(t, outcomes.Decisions, 1)
	require.Len(t, outcomes.ActionItems, 1)
	require.Len(t, outcomes.UnresolvedQuestions, 1)
	assert.Equal(t, "Ship v2 on Friday", outcomes.Decisions[0].Text)
	assert.Equal(t, "Monday", outcomes.ActionItems[0].Deadline)
}

func TestExtractTasks_ModelErrorPassesThrough(t *testing.T) {
	model := &scriptedModel{err: mderrors.NewStageError(mderrors.ErrRateLimited, "insight", "model returned HTTP 429")}
	e := NewExtractor(model, logging.NewNopLogger())

	_, err := e.ExtractTasks(context.Background(), "transcript")
	require.Error(t, err)
	se, ok := mderrors.AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, mderrors.ErrRateLimited, se.Code)
}

func TestMergeDrafts(t *testing.T) {
	outcomes := &Outcomes{
		Decisions:   []OutcomeItem{{Text: "Ship v2 on Friday", Owner: "Bob"}},
		ActionItems: []OutcomeItem{{Text: "Update the docs", Owner: "Alice", Deadline: "Monday"}},
		UnresolvedQuestions: []OutcomeItem{
			{Text: "Is the budget approved?"},
		},
	}
	taskDrafts := []task.Draft{
		{Name: "update the docs", Category: task.CategoryWork}, // duplicate, case-insensitive
		{Name: "Review budget numbers", Category: task.CategoryResearch},
	}

	merged := MergeDrafts(outcomes, taskDrafts)
	require.Len(t, merged, 4)

	// Decisions first, then action items, then open questions, then the rest.
	assert.Equal(t, task.CategoryDecision, merged[0].Category)
	assert.Equal(t, "Ship v2 on Friday", merged[0].Name)
	assert.Equal(t, task.CategoryActionItem, merged[1].Category)
	assert.Equal(t, task.CategoryUnresolved, merged[2].Category)
	assert.Equal(t, "Review budget numbers", merged[3].Name)
}

func TestMergeDrafts_NilOutcomes(t *testing.T) {
	drafts := []task.Draft{{Name: "Solo task"}}
	merged := MergeDrafts(nil, drafts)
	require.Len(t, merged, 1)
	assert.Equal(t, "Solo task", merged[0].Name)
}
