// Package pipeline runs the meeting processing state machine: claim the
// meeting, transcribe, extract insight, persist tasks, schedule calendar
// events. Every status move goes through conditional updates, so two runs of
// the same meeting can never both win.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/minutedapp/minuted/pkg/blob"
	"github.com/minutedapp/minuted/pkg/calendar"
	mderrors "github.com/minutedapp/minuted/pkg/errors"
	"github.com/minutedapp/minuted/pkg/insight"
	"github.com/minutedapp/minuted/pkg/logging"
	"github.com/minutedapp/minuted/pkg/meeting"
	"github.com/minutedapp/minuted/pkg/task"
	"github.com/minutedapp/minuted/pkg/transcribe"
)

// MeetingStore is the slice of the meeting repository the orchestrator uses.
type MeetingStore interface {
	Get(ctx context.Context, id string) (*meeting.Meeting, error)
	TransitionStatus(ctx context.Context, id string, from, to meeting.Status) error
	SetTranscribed(ctx context.Context, id string, detail *meeting.TranscriptionDetail) error
	SetProcessed(ctx context.Context, id string, timeline *meeting.Timeline) error
	SetFailed(ctx context.Context, id string, from, to meeting.Status, message string) error
}

// TaskStore is the slice of the task repository the orchestrator uses.
// CreateBatch replaces the meeting's previous tasks in the same transaction,
// so a retried run can never duplicate tasks or erase them without a
// replacement.
type TaskStore interface {
	CreateBatch(ctx context.Context, meetingID, userID string, drafts []task.Draft, deadlines []*time.Time) ([]*task.Task, error)
}

// InsightExtractor is the extraction surface the orchestrator uses.
type InsightExtractor interface {
	ExtractTimeline(ctx context.Context, transcript string, durationSeconds int) (*meeting.Timeline, error)
	ExtractTasks(ctx context.Context, transcript string) ([]task.Draft, error)
	ExtractOutcomes(ctx context.Context, transcript string) (*insight.Outcomes, error)
}

// TaskScheduler is the best-effort calendar surface. Nil disables scheduling.
type TaskScheduler interface {
	Schedule(ctx context.Context, tasks []*task.Task, attendees []string) (*calendar.Summary, error)
}

// Config holds the orchestrator's non-dependency settings.
type Config struct {
	// Attendees are the validated emails invited to every scheduled event.
	// Task owners are display names from a transcript, never attendees.
	Attendees []string
}

// Result summarizes one successful pipeline run.
type Result struct {
	MeetingID        string
	TranscriptLength int
	SegmentCount     int
	TaskCount        int
	Scheduling       *calendar.Summary
}

// Orchestrator drives a meeting through the pipeline.
type Orchestrator struct {
	meetings    MeetingStore
	tasks       TaskStore
	blobs       blob.Store
	transcriber transcribe.Provider
	insights    InsightExtractor
	scheduler   TaskScheduler
	config      Config
	metrics     *Metrics
	tracer      trace.Tracer
	now         func() time.Time
	logger      logging.Logger
}

// New creates an Orchestrator. scheduler may be nil when no calendar is
// configured; metrics may be nil in tests.
func New(
	meetings MeetingStore,
	tasks TaskStore,
	blobs blob.Store,
	transcriber transcribe.Provider,
	insights InsightExtractor,
	scheduler TaskScheduler,
	cfg Config,
	metrics *Metrics,
	logger logging.Logger,
) *Orchestrator {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Orchestrator{
		meetings:    meetings,
		tasks:       tasks,
		blobs:       blobs,
		transcriber: transcriber,
		insights:    insights,
		scheduler:   scheduler,
		config:      cfg,
		metrics:     metrics,
		tracer:      otel.Tracer("minuted/pipeline"),
		now:         time.Now,
		logger:      logger.With(logging.F("component", "orchestrator")),
	}
}

// Run executes the pipeline for one meeting. It is safe to call concurrently
// for the same meeting: exactly one caller claims it, the rest get
// ErrConflict. A meeting in a non-runnable state returns ErrInvalidState.
func (o *Orchestrator) Run(ctx context.Context, meetingID string) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("meeting_id", meetingID)))
	defer span.End()

	log := o.logger.With(logging.F("meeting_id", meetingID))
	ctx = logging.WithMeetingID(ctx, meetingID)

	m, err := o.meetings.Get(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if !m.Status.Runnable() {
		if m.Status == meeting.StatusTranscribing || m.Status == meeting.StatusProcessing {
			return nil, fmt.Errorf("meeting %s is already being processed: %w", meetingID, mderrors.ErrConflict)
		}
		return nil, fmt.Errorf("%w: meeting %s is %q", mderrors.ErrInvalidState, meetingID, string(m.Status))
	}

	// Claiming the meeting is the double-run guard: the conditional update
	// succeeds for exactly one caller.
	if err := o.meetings.TransitionStatus(ctx, meetingID, m.Status, meeting.StatusTranscribing); err != nil {
		return nil, err
	}
	log.Info("Pipeline run started", logging.F("from_status", string(m.Status)))

	detail, err := o.transcribeStage(ctx, m)
	if err != nil {
		o.metrics.recordRun("transcription_error")
		return nil, err
	}

	result, err := o.processStage(ctx, m, detail)
	if err != nil {
		o.metrics.recordRun("processing_error")
		return nil, err
	}

	result.Scheduling = o.scheduleStage(ctx, m)

	o.metrics.recordRun("processed")
	log.Info("Pipeline run finished",
		logging.F("transcript_len", result.TranscriptLength),
		logging.F("segments", result.SegmentCount),
		logging.F("tasks", result.TaskCount))
	return result, nil
}

// transcribeStage fetches the audio and produces a transcript. On failure the
// meeting moves to transcription_error with the classified message; no stage
// output is written.
func (o *Orchestrator) transcribeStage(ctx context.Context, m *meeting.Meeting) (*meeting.TranscriptionDetail, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.transcribe")
	defer span.End()
	defer o.metrics.observeStage("transcription", o.now())

	audio, err := o.blobs.Fetch(ctx, m.FilePath)
	if err != nil {
		return nil, o.failTranscription(ctx, m.ID, err)
	}

	result, err := o.transcriber.Transcribe(ctx, audio, m.FileName)
	if err != nil {
		return nil, o.failTranscription(ctx, m.ID, err)
	}

	detail := &meeting.TranscriptionDetail{
		Transcript: result.Transcript,
		Confidence: result.Confidence,
		Duration:   result.DurationSeconds,
		Language:   result.LanguageCode,
	}
	// A failed stage-output write must not leave the meeting wedged in
	// transcribing, so it is recorded like any other stage failure.
	if err := o.meetings.SetTranscribed(ctx, m.ID, detail); err != nil {
		return nil, o.failTranscription(ctx, m.ID, err)
	}
	return detail, nil
}

// processStage extracts insight, resolves deadlines, and persists the
// timeline and tasks. Task persistence happens before the meeting is marked
// processed, so a processed meeting always has its tasks.
func (o *Orchestrator) processStage(ctx context.Context, m *meeting.Meeting, detail *meeting.TranscriptionDetail) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.process")
	defer span.End()
	defer o.metrics.observeStage("processing", o.now())

	if err := o.meetings.TransitionStatus(ctx, m.ID, meeting.StatusTranscribed, meeting.StatusProcessing); err != nil {
		return nil, err
	}

	timeline, err := o.insights.ExtractTimeline(ctx, detail.Transcript, detail.Duration)
	if err != nil {
		return nil, o.failProcessing(ctx, m.ID, err)
	}

	outcomes, err := o.insights.ExtractOutcomes(ctx, detail.Transcript)
	if err != nil {
		return nil, o.failProcessing(ctx, m.ID, err)
	}

	taskDrafts, err := o.insights.ExtractTasks(ctx, detail.Transcript)
	if err != nil {
		return nil, o.failProcessing(ctx, m.ID, err)
	}

	drafts := insight.MergeDrafts(outcomes, taskDrafts)
	deadlines := make([]*time.Time, len(drafts))
	now := o.now()
	for i, d := range drafts {
		resolved := ResolveDeadline(d.DeadlineExpression, now)
		deadlines[i] = &resolved
	}

	persisted, err := o.tasks.CreateBatch(ctx, m.ID, m.UserID, drafts, deadlines)
	if err != nil {
		return nil, o.failProcessing(ctx, m.ID, err)
	}
	o.metrics.tasksPersisted.Add(float64(len(persisted)))

	if err := o.meetings.SetProcessed(ctx, m.ID, timeline); err != nil {
		return nil, o.failProcessing(ctx, m.ID, err)
	}

	return &Result{
		MeetingID:        m.ID,
		TranscriptLength: len(detail.Transcript),
		SegmentCount:     len(timeline.Segments),
		TaskCount:        len(persisted),
	}, nil
}

// scheduleStage places the run's tasks on the calendar. It runs after the
// meeting is already processed and never fails the run.
func (o *Orchestrator) scheduleStage(ctx context.Context, m *meeting.Meeting) *calendar.Summary {
	if o.scheduler == nil {
		return nil
	}
	ctx, span := o.tracer.Start(ctx, "pipeline.schedule")
	defer span.End()
	defer o.metrics.observeStage("scheduling", o.now())

	tasks, err := o.listPersistedTasks(ctx, m.ID)
	if err != nil {
		o.logger.Warn("Skipping calendar scheduling",
			logging.Err(err), logging.F("meeting_id", m.ID))
		return nil
	}

	summary, err := o.scheduler.Schedule(ctx, tasks, o.config.Attendees)
	if err != nil {
		o.logger.Warn("Calendar scheduling failed",
			logging.Err(err), logging.F("meeting_id", m.ID))
		return nil
	}
	o.metrics.eventsCreated.Add(float64(summary.ScheduledCount))
	return summary
}

// taskLister is optionally implemented by the task store; the pgx repository
// does. Without it, scheduling has nothing to schedule.
type taskLister interface {
	ListByMeeting(ctx context.Context, meetingID string) ([]*task.Task, error)
}

func (o *Orchestrator) listPersistedTasks(ctx context.Context, meetingID string) ([]*task.Task, error) {
	lister, ok := o.tasks.(taskLister)
	if !ok {
		return nil, fmt.Errorf("task store does not support listing")
	}
	return lister.ListByMeeting(ctx, meetingID)
}

// failTranscription records a transcription stage failure and returns the
// classified error.
func (o *Orchestrator) failTranscription(ctx context.Context, meetingID string, cause error) error {
	se := mderrors.Classify(cause, "transcription")
	if err := o.meetings.SetFailed(ctx, meetingID, meeting.StatusTranscribing, meeting.StatusTranscriptionError, se.Message); err != nil {
		o.logger.Error("Failed to record transcription failure",
			logging.Err(err), logging.F("meeting_id", meetingID))
	}
	return se
}

// failProcessing records a processing stage failure and returns the
// classified error.
func (o *Orchestrator) failProcessing(ctx context.Context, meetingID string, cause error) error {
	se := mderrors.Classify(cause, "processing")
	if err := o.meetings.SetFailed(ctx, meetingID, meeting.StatusProcessing, meeting.StatusProcessingError, se.Message); err != nil {
		o.logger.Error("Failed to record processing failure",
			logging.Err(err), logging.F("meeting_id", meetingID))
	}
	return se
}
