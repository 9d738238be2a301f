package insight

import (
	"context"
	"fmt"
	"strings"

	mderrors "github.com/minutedapp/minuted/pkg/errors"
	"github.com/minutedapp/minuted/pkg/logging"
	"github.com/minutedapp/minuted/pkg/meeting"
	"github.com/minutedapp/minuted/pkg/task"
)

// Outcomes is the meeting-level extraction result: what was decided, what
// needs doing, and what stayed open.
type Outcomes struct {
	Decisions           []OutcomeItem `json:"decisions"`
	ActionItems         []OutcomeItem `json:"action_items"`
	UnresolvedQuestions []OutcomeItem `json:"unresolved_questions"`
	Summary             string        `json:"summary"`
}

// OutcomeItem is one decision, action item, or open question.
type OutcomeItem struct {
	Text     string `json:"text"`
	Owner    string `json:"owner"`
	Deadline string `json:"deadline"`
	Priority string `json:"priority"`
	Context  string `json:"context"`
}

// Extractor turns a transcript into structured insight through a language
// model. Extraction failures are terminal for the run; the model is never
// retried within one run.
type Extractor struct {
	model  Model
	logger logging.Logger
}

// NewExtractor creates an Extractor backed by the given model.
func NewExtractor(model Model, logger logging.Logger) *Extractor {
	return &Extractor{
		model:  model,
		logger: logger.With(logging.F("component", "insight_extractor")),
	}
}

// SegmentCount decides how many minute segments to request. The audio
// duration drives it; without a duration it degrades to a line-count
// estimate, never below one.
func SegmentCount(transcript string, durationSeconds int) int {
	if durationSeconds > 0 {
		minutes := durationSeconds / 60
		if durationSeconds%60 != 0 {
			minutes++
		}
		if minutes < 1 {
			minutes = 1
		}
		return minutes
	}
	lines := strings.Count(strings.TrimSpace(transcript), "\n") + 1
	estimate := lines / 5
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}

// ExtractTimeline produces the minute-by-minute breakdown plus meeting-level
// aggregates.
func (e *Extractor) ExtractTimeline(ctx context.Context, transcript string, durationSeconds int) (*meeting.Timeline, error) {
	segments := SegmentCount(transcript, durationSeconds)
	prompt := timelinePrompt(transcript, segments)

	raw, err := e.model.Complete(ctx, prompt)
	if err != nil {
		return nil, mderrors.Classify(err, "insight")
	}

	var timeline meeting.Timeline
	if err := decodeModelJSON(raw, &timeline); err != nil {
		return nil, &mderrors.StageError{
			Code:    mderrors.ErrMalformedResponse,
			Stage:   "insight",
			Message: fmt.Sprintf("timeline extraction returned unusable output: %v", err),
			Cause:   err,
		}
	}
	if len(timeline.Segments) == 0 {
		return nil, mderrors.NewStageError(mderrors.ErrMalformedResponse, "insight",
			"timeline extraction returned no segments")
	}

	e.logger.Info("Timeline extracted",
		logging.F("segments", len(timeline.Segments)),
		logging.F("decisions", len(timeline.KeyDecisions)),
		logging.F("action_items", len(timeline.ActionItems)))
	return &timeline, nil
}

// rawTask is the extraction wire shape for one task candidate.
type rawTask struct {
	Task         string   `json:"task"`
	Description  string   `json:"description"`
	Owner        string   `json:"owner"`
	Priority     string   `json:"priority"`
	Category     string   `json:"category"`
	Deadline     string   `json:"deadline"`
	Effort       int      `json:"effort"`
	Dependencies []string `json:"dependencies"`
	Tags         []string `json:"tags"`
	Context      string   `json:"context"`
}

// ExtractTasks produces actionable task drafts with owners, priorities,
// effort estimates, and relative deadline expressions.
func (e *Extractor) ExtractTasks(ctx context.Context, transcript string) ([]task.Draft, error) {
	raw, err := e.model.Complete(ctx, tasksPrompt(transcript))
	if err != nil {
		return nil, mderrors.Classify(err, "insight")
	}

	var parsed []rawTask
	if err := decodeModelJSON(raw, &parsed); err != nil {
		return nil, &mderrors.StageError{
			Code:    mderrors.ErrMalformedResponse,
			Stage:   "insight",
			Message: fmt.Sprintf("task extraction returned unusable output: %v", err),
			Cause:   err,
		}
	}

	drafts := make([]task.Draft, 0, len(parsed))
	for _, rt := range parsed {
		name := strings.TrimSpace(rt.Task)
		if name == "" {
			continue
		}
		drafts = append(drafts, task.Draft{
			Name:               name,
			Description:        strings.TrimSpace(rt.Description),
			Owner:              strings.TrimSpace(rt.Owner),
			Priority:           task.ParsePriority(rt.Priority),
			Category:           task.ParseCategory(rt.Category),
			DeadlineExpression: strings.TrimSpace(rt.Deadline),
			Effort:             task.ClampEffort(rt.Effort),
			Dependencies:       rt.Dependencies,
			Tags:               rt.Tags,
			Context:            strings.TrimSpace(rt.Context),
		})
	}

	e.logger.Info("Tasks extracted", logging.F("count", len(drafts)))
	return drafts, nil
}

// ExtractOutcomes produces the decisions / action items / open questions view
// of the meeting.
func (e *Extractor) ExtractOutcomes(ctx context.Context, transcript string) (*Outcomes, error) {
	raw, err := e.model.Complete(ctx, outcomesPrompt(transcript))
	if err != nil {
		return nil, mderrors.Classify(err, "insight")
	}

	var outcomes Outcomes
	if err := decodeModelJSON(raw, &outcomes); err != nil {
		return nil, &mderrors.StageError{
			Code:    mderrors.ErrMalformedResponse,
			Stage:   "insight",
			Message: fmt.Sprintf("outcome extraction returned unusable output: %v", err),
			Cause:   err,
		}
	}

	e.logger.Info("Outcomes extracted",
		logging.F("decisions", len(outcomes.Decisions)),
		logging.F("action_items", len(outcomes.ActionItems)),
		logging.F("unresolved", len(outcomes.UnresolvedQuestions)))
	return &outcomes, nil
}

// MergeDrafts combines outcome-derived drafts with the richer task extraction
// output. Decisions come first so they are visible at the top of a meeting's
// task list, then action items, then open questions. Task-extraction drafts
// that duplicate an outcome by name are skipped.
func MergeDrafts(outcomes *Outcomes, taskDrafts []task.Draft) []task.Draft {
	var merged []task.Draft
	seen := map[string]bool{}

	add := func(d task.Draft) {
		key := strings.ToLower(strings.TrimSpace(d.Name))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		merged = append(merged, d)
	}

	if outcomes != nil {
		for _, item := range outcomes.Decisions {
			add(outcomeDraft(item, task.CategoryDecision))
		}
		for _, item := range outcomes.ActionItems {
			add(outcomeDraft(item, task.CategoryActionItem))
		}
		for _, item := range outcomes.UnresolvedQuestions {
			add(outcomeDraft(item, task.CategoryUnresolved))
		}
	}
	for _, d := range taskDrafts {
		add(d)
	}
	return merged
}

func outcomeDraft(item OutcomeItem, category task.Category) task.Draft {
	return task.Draft{
		Name:               strings.TrimSpace(item.Text),
		Owner:              strings.TrimSpace(item.Owner),
		Priority:           task.ParsePriority(item.Priority),
		Category:           category,
		DeadlineExpression: strings.TrimSpace(item.Deadline),
		Effort:             1,
		Context:            strings.TrimSpace(item.Context),
	}
}
