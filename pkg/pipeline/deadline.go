package pipeline

import (
	"strings"
	"time"
)

// deadlineHour is the hour of day (UTC) stamped on resolved deadlines.
const deadlineHour = 17

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ResolveDeadline turns a spoken deadline expression into an absolute time.
// A named weekday resolves to its next occurrence; when today is that
// weekday, it means next week, not today. Anything unparseable falls back to
// one week out. Resolution never fails.
func ResolveDeadline(expr string, now time.Time) time.Time {
	now = now.UTC()
	expr = strings.ToLower(strings.TrimSpace(expr))
	expr = strings.TrimPrefix(expr, "by ")
	expr = strings.TrimPrefix(expr, "on ")
	expr = strings.TrimPrefix(expr, "next ")

	if expr == "" {
		return atDeadlineHour(now.AddDate(0, 0, 7))
	}

	if t, err := time.Parse("2006-01-02", expr); err == nil {
		return atDeadlineHour(t)
	}
	if t, err := time.Parse(time.RFC3339, expr); err == nil {
		return t
	}

	switch expr {
	case "today":
		// Past the deadline hour, "today" rolls to tomorrow rather than
		// producing a deadline already in the past.
		d := atDeadlineHour(now)
		if !d.After(now) {
			d = d.AddDate(0, 0, 1)
		}
		return d
	case "tomorrow":
		return atDeadlineHour(now.AddDate(0, 0, 1))
	case "end of week", "end of the week", "eow":
		return atDeadlineHour(nextWeekday(now, time.Friday))
	case "end of month", "end of the month":
		firstOfNext := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
		return atDeadlineHour(firstOfNext.AddDate(0, 0, -1))
	}

	if wd, ok := weekdays[expr]; ok {
		return atDeadlineHour(nextWeekday(now, wd))
	}

	return atDeadlineHour(now.AddDate(0, 0, 7))
}

// nextWeekday returns the next occurrence of wd strictly after today.
func nextWeekday(now time.Time, wd time.Weekday) time.Time {
	days := (int(wd) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return now.AddDate(0, 0, days)
}

func atDeadlineHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), deadlineHour, 0, 0, 0, time.UTC)
}
