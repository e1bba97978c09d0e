package workflow

import (
	"testing"
	"time"

	"github.com/mmdatafocus/lendstock_backend/models"
)

func TestDueMilestone(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		due  time.Time
		want models.NotificationEventType
	}{
		{"due tomorrow", now.AddDate(0, 0, 1), models.NotificationEventDueSoon},
		{"due today", now, models.NotificationEventDueToday},
		{"due yesterday", now.AddDate(0, 0, -1), models.NotificationEventOverdue},
		{"due in two days", now.AddDate(0, 0, 2), ""},
		{"due last week", now.AddDate(0, 0, -7), models.NotificationEventOverdue},
		// Time of day within the same date must not change the classification.
		{"due later today", time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC), models.NotificationEventDueToday},
		{"due early tomorrow", time.Date(2026, 3, 11, 0, 1, 0, 0, time.UTC), models.NotificationEventDueSoon},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DueMilestone(tc.due, now); got != tc.want {
				t.Fatalf("DueMilestone(%v) = %q, want %q", tc.due, got, tc.want)
			}
		})
	}
}

func TestDueMilestoneCrossesTimezones(t *testing.T) {
	// 2026-03-10 23:00 UTC+8 is 15:00 UTC the same day; both sides normalize
	// to UTC midnight before comparing.
	loc := time.FixedZone("UTC+8", 8*3600)
	now := time.Date(2026, 3, 10, 23, 0, 0, 0, loc)
	due := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	if got := DueMilestone(due, now); got != models.NotificationEventDueToday {
		t.Fatalf("DueMilestone = %q, want due_today", got)
	}
}
