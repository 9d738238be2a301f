// Package task defines follow-up work derived from meetings and its
// persistence gateway.
package task

import (
	"time"
)

// Status is a task's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Priority ranks a task's urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority normalizes a free-text priority from extraction output,
// defaulting to medium.
func ParsePriority(raw string) Priority {
	switch Priority(raw) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return Priority(raw)
	default:
		return PriorityMedium
	}
}

// Category classifies what kind of follow-up a task is. The outcome extraction
// path produces decision/action-item/unresolved; the richer task extraction
// path adds the work-type categories.
type Category string

const (
	CategoryDecision      Category = "decision"
	CategoryActionItem    Category = "action-item"
	CategoryUnresolved    Category = "unresolved"
	CategoryWork          Category = "work"
	CategoryFollowUp      Category = "follow-up"
	CategoryCommunication Category = "communication"
	CategoryResearch      Category = "research"
	CategoryReview        Category = "review"
	CategoryPlanning      Category = "planning"
)

var knownCategories = map[Category]bool{
	CategoryDecision:      true,
	CategoryActionItem:    true,
	CategoryUnresolved:    true,
	CategoryWork:          true,
	CategoryFollowUp:      true,
	CategoryCommunication: true,
	CategoryResearch:      true,
	CategoryReview:        true,
	CategoryPlanning:      true,
}

// ParseCategory normalizes a free-text category from extraction output,
// defaulting to action-item.
func ParseCategory(raw string) Category {
	if knownCategories[Category(raw)] {
		return Category(raw)
	}
	return CategoryActionItem
}

// Task is a persisted unit of follow-up work belonging to exactly one meeting
// and one user.
type Task struct {
	ID              string
	Name            string
	Description     string
	Owner           string
	Status          Status
	Priority        Priority
	Category        Category
	Deadline        *time.Time
	CompletedAt     *time.Time
	MeetingID       string
	UserID          string
	CalendarEventID *string
	Effort          int // 1-5 scale: 1 = under 30 minutes, 5 = over 8 hours
	Dependencies    []string
	Tags            []string
	Context         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Draft is the insight extractor's raw candidate for a task, before deadline
// resolution and persistence. DeadlineExpression may be relative ("next
// Friday") or an ISO date; the orchestrator resolves it.
type Draft struct {
	Name               string
	Description        string
	Owner              string
	Priority           Priority
	Category           Category
	DeadlineExpression string
	Effort             int
	Dependencies       []string
	Tags               []string
	Context            string
}

// initialStatus maps a draft's category to its persisted status: a decision,
// once made, requires no further action.
func (d *Draft) initialStatus() Status {
	if d.Category == CategoryDecision {
		return StatusCompleted
	}
	return StatusPending
}

// ClampEffort bounds an extracted effort estimate to the 1-5 scale.
func ClampEffort(effort int) int {
	if effort < 1 {
		return 1
	}
	if effort > 5 {
		return 5
	}
	return effort
}
