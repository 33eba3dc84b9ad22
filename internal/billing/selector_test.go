package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	policy := DefaultReminderPolicy()
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	timePtr := func(t time.Time) *time.Time { return &t }

	cases := []struct {
		name string
		cand ReminderCandidate
		want ReminderCategory
	}{
		{
			name: "due in 2 days",
			cand: ReminderCandidate{DueDate: date(2026, 1, 12), PreReminderEnabled: true},
			want: CategoryPreDue,
		},
		{
			name: "due at window edge",
			cand: ReminderCandidate{DueDate: date(2026, 1, 13), PreReminderEnabled: true},
			want: CategoryPreDue,
		},
		{
			name: "due beyond window",
			cand: ReminderCandidate{DueDate: date(2026, 1, 14), PreReminderEnabled: true},
			want: CategoryNone,
		},
		{
			name: "due today takes pre-due priority",
			cand: ReminderCandidate{DueDate: date(2026, 1, 10), PreReminderEnabled: true},
			want: CategoryPreDue,
		},
		{
			name: "due today with pre-reminders disabled",
			cand: ReminderCandidate{DueDate: date(2026, 1, 10), PreReminderEnabled: false},
			want: CategoryDueToday,
		},
		{
			name: "upcoming with pre-reminders disabled",
			cand: ReminderCandidate{DueDate: date(2026, 1, 12), PreReminderEnabled: false},
			want: CategoryNone,
		},
		{
			name: "pre-due throttled by recent reminder",
			cand: ReminderCandidate{
				DueDate:            date(2026, 1, 12),
				PreReminderEnabled: true,
				LastReminderSentAt: timePtr(now.Add(-2 * time.Hour)),
			},
			want: CategoryNone,
		},
		{
			name: "pre-due past throttle window",
			cand: ReminderCandidate{
				DueDate:            date(2026, 1, 12),
				PreReminderEnabled: true,
				LastReminderSentAt: timePtr(now.Add(-25 * time.Hour)),
			},
			want: CategoryPreDue,
		},
		{
			name: "due today already reminded today",
			cand: ReminderCandidate{
				DueDate:            date(2026, 1, 10),
				PreReminderEnabled: false,
				LastReminderSentAt: timePtr(now.Add(-2 * time.Hour)),
			},
			want: CategoryNone,
		},
		{
			name: "due today reminded yesterday",
			cand: ReminderCandidate{
				DueDate:            date(2026, 1, 10),
				PreReminderEnabled: false,
				LastReminderSentAt: timePtr(date(2026, 1, 9).Add(20 * time.Hour)),
			},
			want: CategoryDueToday,
		},
		{
			name: "overdue never reminded",
			cand: ReminderCandidate{DueDate: date(2026, 1, 2), PreReminderEnabled: true},
			want: CategoryOverdue,
		},
		{
			name: "overdue inside frequency gap",
			cand: ReminderCandidate{
				DueDate:            date(2026, 1, 2),
				PreReminderEnabled: true,
				RemindersCount:     2,
				LastReminderSentAt: timePtr(now.Add(-3 * 24 * time.Hour)),
			},
			want: CategoryNone,
		},
		{
			name: "overdue past frequency gap",
			cand: ReminderCandidate{
				DueDate:            date(2026, 1, 2),
				PreReminderEnabled: true,
				RemindersCount:     2,
				LastReminderSentAt: timePtr(now.Add(-8 * 24 * time.Hour)),
			},
			want: CategoryOverdue,
		},
		{
			name: "overdue attempts exhausted",
			cand: ReminderCandidate{
				DueDate:            date(2026, 1, 2),
				PreReminderEnabled: true,
				RemindersCount:     5,
				LastReminderSentAt: timePtr(now.Add(-30 * 24 * time.Hour)),
			},
			want: CategoryNone,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, policy.Classify(now, tc.cand))
		})
	}
}

func TestClassifyCustomPolicy(t *testing.T) {
	policy := ReminderPolicy{
		PreDueWindowDays:     7,
		MaxReminderAttempts:  2,
		OverdueFrequencyDays: 1,
		Throttle:             time.Hour,
	}
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	// A 7-day window catches what the default 3-day window misses.
	cand := ReminderCandidate{DueDate: date(2026, 1, 16), PreReminderEnabled: true}
	assert.Equal(t, CategoryPreDue, policy.Classify(now, cand))

	// A 2-attempt cap exhausts earlier.
	overdue := ReminderCandidate{DueDate: date(2026, 1, 1), RemindersCount: 2}
	assert.Equal(t, CategoryNone, policy.Classify(now, overdue))
}
