package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"academy_billing_app/internal/models"
)

// ReminderCategory is the outcome of classifying a plan against "today".
type ReminderCategory string

const (
	CategoryPreDue   ReminderCategory = "PRE_DUE"
	CategoryDueToday ReminderCategory = "DUE_TODAY"
	CategoryOverdue  ReminderCategory = "OVERDUE"
	CategoryNone     ReminderCategory = "NONE"
)

// ReminderPolicy holds the tunables of reminder eligibility. These are
// configuration, not constants; the defaults mirror production behavior.
type ReminderPolicy struct {
	// PreDueWindowDays is how many days before the due date a pre-due
	// reminder may go out.
	PreDueWindowDays int
	// MaxReminderAttempts caps overdue reminders per plan.
	MaxReminderAttempts int
	// OverdueFrequencyDays is the minimum gap between overdue reminders.
	OverdueFrequencyDays int
	// Throttle is the minimum gap between pre-due reminders.
	Throttle time.Duration
}

// DefaultReminderPolicy returns the production defaults.
func DefaultReminderPolicy() ReminderPolicy {
	return ReminderPolicy{
		PreDueWindowDays:     3,
		MaxReminderAttempts:  5,
		OverdueFrequencyDays: 7,
		Throttle:             24 * time.Hour,
	}
}

// ReminderCandidate is the projection of a plan the selector and dispatcher
// operate on. The storage query that produces candidates only needs to be a
// loose over-approximation; correctness lives in Classify.
type ReminderCandidate struct {
	PlanID             uint
	PlanUUID           string
	TenantID           string
	AccountID          string
	CourseID           string
	PlanType           models.PlanType
	DueDate            time.Time
	Amount             decimal.Decimal
	RemindersCount     int
	LastReminderSentAt *time.Time
	PreReminderEnabled bool
	ContactEmail       string
	ContactPhone       string
}

// Classify decides whether a reminder is due now and which category applies.
// Categories are evaluated in priority order PRE_DUE, DUE_TODAY, OVERDUE; a
// candidate matching more than one rule takes the first match. The throttle
// windows make a duplicate run within the same window a no-op, which is what
// keeps dispatch idempotent under concurrent triggers.
func (p ReminderPolicy) Classify(now time.Time, c ReminderCandidate) ReminderCategory {
	today := Midnight(now)
	due := Midnight(c.DueDate)
	last := c.LastReminderSentAt

	// PRE_DUE: due within [today, today+N], pre-reminders enabled, and no
	// reminder inside the throttle window.
	if !due.Before(today) && !due.After(today.AddDate(0, 0, p.PreDueWindowDays)) &&
		c.PreReminderEnabled &&
		(last == nil || now.Sub(*last) >= p.Throttle) {
		return CategoryPreDue
	}

	// DUE_TODAY: due date falls within [today, today+1d) and nothing has
	// been sent since the start of today.
	if due.Equal(today) && (last == nil || last.Before(today)) {
		return CategoryDueToday
	}

	// OVERDUE: past due, attempts not exhausted, last reminder older than
	// the overdue frequency.
	if due.Before(today) && c.RemindersCount < p.MaxReminderAttempts &&
		(last == nil || now.Sub(*last) >= time.Duration(p.OverdueFrequencyDays)*24*time.Hour) {
		return CategoryOverdue
	}

	return CategoryNone
}
