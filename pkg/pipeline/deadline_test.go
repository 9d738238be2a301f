package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Monday, March 2 2026, 10:00 UTC.
var monday = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func TestResolveDeadline_NamedWeekday(t *testing.T) {
	got := ResolveDeadline("Friday", monday)
	assert.Equal(t, time.Date(2026, 3, 6, 17, 0, 0, 0, time.UTC), got)

	got = ResolveDeadline("by friday", monday)
	assert.Equal(t, time.Date(2026, 3, 6, 17, 0, 0, 0, time.UTC), got)

	got = ResolveDeadline("next Wednesday", monday)
	assert.Equal(t, time.Date(2026, 3, 4, 17, 0, 0, 0, time.UTC), got)
}

func TestResolveDeadline_SameWeekdayMeansNextWeek(t *testing.T) {
	got := ResolveDeadline("Monday", monday)
	assert.Equal(t, time.Date(2026, 3, 9, 17, 0, 0, 0, time.UTC), got)
}

func TestResolveDeadline_EmptyDefaultsToOneWeek(t *testing.T) {
	got := ResolveDeadline("", monday)
	assert.Equal(t, time.Date(2026, 3, 9, 17, 0, 0, 0, time.UTC), got)
}

func TestResolveDeadline_UnparseableDefaultsToOneWeek(t *testing.T) {
	got := ResolveDeadline("when the stars align", monday)
	assert.Equal(t, time.Date(2026, 3, 9, 17, 0, 0, 0, time.UTC), got)
}

func TestResolveDeadline_TodayPastDeadlineHour(t *testing.T) {
	evening := time.Date(2026, 3, 2, 18, 30, 0, 0, time.UTC)

	// 17:00 today is already gone, so "today" rolls to tomorrow.
	got := ResolveDeadline("today", evening)
	assert.Equal(t, time.Date(2026, 3, 3, 17, 0, 0, 0, time.UTC), got)
	assert.True(t, got.After(evening))

	// Exactly at the deadline hour also rolls forward.
	atFive := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 3, 17, 0, 0, 0, time.UTC), ResolveDeadline("today", atFive))
}

func TestResolveDeadline_ISODate(t *testing.T) {
	got := ResolveDeadline("2026-04-15", monday)
	assert.Equal(t, time.Date(2026, 4, 15, 17, 0, 0, 0, time.UTC), got)
}

func TestResolveDeadline_RelativeWords(t *testing.T) {
	assert.Equal(t, time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC), ResolveDeadline("today", monday))
	assert.Equal(t, time.Date(2026, 3, 3, 17, 0, 0, 0, time.UTC), ResolveDeadline("tomorrow", monday))
	assert.Equal(t, time.Date(2026, 3, 6, 17, 0, 0, 0, time.UTC), ResolveDeadline("end of the week", monday))
	assert.Equal(t, time.Date(2026, 3, 31, 17, 0, 0, 0, time.UTC), ResolveDeadline("end of month", monday))
}
