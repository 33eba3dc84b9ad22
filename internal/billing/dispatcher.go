package billing

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// ReminderStore is the persistence surface the dispatcher needs: a loose
// over-approximation of candidates plus a compare-and-set on the reminder
// counters. The CAS is what keeps double-triggered runs from double-counting.
type ReminderStore interface {
	ListCandidates(ctx context.Context, now time.Time, limit int) ([]ReminderCandidate, error)
	// MarkReminded increments RemindersCount and sets LastReminderSentAt to
	// now, but only if LastReminderSentAt still equals prev. Returns false
	// when a concurrent run got there first.
	MarkReminded(ctx context.Context, planID uint, prev *time.Time, now time.Time) (bool, error)
}

// Directory resolves account display names and contact addresses. Lookups are
// grouped per tenant so a batch costs one name query per tenant, not one per
// plan.
type Directory interface {
	AccountNames(ctx context.Context, tenantID string, accountIDs []string) (map[string]string, error)
	AccountContact(ctx context.Context, tenantID, accountID string) (Contact, error)
}

// Contact is a payer's reachable addresses. A notifier uses whichever its
// channel needs and returns ErrNoContact when it is missing.
type Contact struct {
	Email string
	Phone string
}

// IsEmpty reports whether no address is known at all.
func (c Contact) IsEmpty() bool { return c.Email == "" && c.Phone == "" }

// ReminderMessage is the rendered notification handed to the transport.
type ReminderMessage struct {
	Subject string
	Body    string
}

// Notifier delivers one reminder. Implementations must honor the context
// deadline; a stalled send is treated like any other failure.
type Notifier interface {
	Send(ctx context.Context, contact Contact, msg ReminderMessage) error
}

// RunOutcome is the per-plan result inside a batch.
type RunOutcome string

const (
	OutcomeSent    RunOutcome = "sent"
	OutcomeSkipped RunOutcome = "skipped"
	OutcomeError   RunOutcome = "error"
)

// RunItem is the per-plan detail of a reminder run.
type RunItem struct {
	PlanID   uint             `json:"plan_id"`
	PlanUUID string           `json:"plan_uuid"`
	TenantID string           `json:"tenant_id"`
	Category ReminderCategory `json:"category"`
	Outcome  RunOutcome       `json:"outcome"`
	Detail   string           `json:"detail,omitempty"`
}

// RunReport aggregates a reminder batch. It is the only externally observable
// side effect of a failed send; no retry is scheduled, the next run simply
// re-evaluates eligibility through the throttle window.
type RunReport struct {
	Total      int       `json:"total"`
	Sent       int       `json:"sent"`
	Skipped    int       `json:"skipped"`
	Errors     int       `json:"errors"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Items      []RunItem `json:"items,omitempty"`
}

const (
	defaultBatchLimit  = 200
	defaultSendTimeout = 10 * time.Second
)

// Dispatcher orchestrates the selector over a bounded batch of plans and
// records outcomes. One plan's failure never aborts the batch.
type Dispatcher struct {
	Store     ReminderStore
	Directory Directory
	Notifier  Notifier
	Policy    ReminderPolicy

	// BatchLimit bounds one run; zero means the default of 200.
	BatchLimit int
	// SendTimeout bounds each notifier call; zero means 10s.
	SendTimeout time.Duration
}

// RunBatch scans up to BatchLimit candidates, classifies them, and sends the
// due reminders. It returns an error only for entrypoint-level failures (the
// candidate query itself); per-plan failures are isolated into the report.
// Cancellation is cooperative: the context is checked between plans, never
// mid-plan.
func (d *Dispatcher) RunBatch(ctx context.Context, now time.Time) (*RunReport, error) {
	limit := d.BatchLimit
	if limit <= 0 {
		limit = defaultBatchLimit
	}
	timeout := d.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	report := &RunReport{StartedAt: now}

	candidates, err := d.Store.ListCandidates(ctx, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminder candidates: %w", err)
	}

	type eligible struct {
		cand     ReminderCandidate
		category ReminderCategory
	}

	// Group eligible plans per tenant so the directory is hit once per
	// tenant for display names.
	byTenant := make(map[string][]eligible)
	for _, cand := range candidates {
		category := d.Policy.Classify(now, cand)
		if category == CategoryNone {
			continue
		}
		byTenant[cand.TenantID] = append(byTenant[cand.TenantID], eligible{cand: cand, category: category})
		report.Total++
	}

	tenants := make([]string, 0, len(byTenant))
	for tenant := range byTenant {
		tenants = append(tenants, tenant)
	}
	sort.Strings(tenants)

	for _, tenant := range tenants {
		batch := byTenant[tenant]

		accountIDs := make([]string, 0, len(batch))
		for _, e := range batch {
			accountIDs = append(accountIDs, e.cand.AccountID)
		}
		names, err := d.Directory.AccountNames(ctx, tenant, accountIDs)
		if err != nil {
			// Names only personalize the message; fall back to account ids.
			log.Printf("directory name lookup failed for tenant %s: %v", tenant, err)
			names = nil
		}

		for _, e := range batch {
			if ctx.Err() != nil {
				report.FinishedAt = time.Now()
				return report, ctx.Err()
			}
			item := d.dispatchOne(ctx, e.cand, e.category, names[e.cand.AccountID], now, timeout)
			report.Items = append(report.Items, item)
			switch item.Outcome {
			case OutcomeSent:
				report.Sent++
			case OutcomeSkipped:
				report.Skipped++
			case OutcomeError:
				report.Errors++
			}
		}
	}

	report.FinishedAt = time.Now()
	return report, nil
}

func (d *Dispatcher) dispatchOne(ctx context.Context, cand ReminderCandidate, category ReminderCategory, name string, now time.Time, timeout time.Duration) RunItem {
	item := RunItem{
		PlanID:   cand.PlanID,
		PlanUUID: cand.PlanUUID,
		TenantID: cand.TenantID,
		Category: category,
	}

	contact := Contact{Email: cand.ContactEmail, Phone: cand.ContactPhone}
	if contact.IsEmpty() {
		resolved, err := d.Directory.AccountContact(ctx, cand.TenantID, cand.AccountID)
		if err != nil || resolved.IsEmpty() {
			item.Outcome = OutcomeSkipped
			item.Detail = "no contact address"
			return item
		}
		contact = resolved
	}

	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	err := d.Notifier.Send(sendCtx, contact, buildMessage(category, name, cand))
	cancel()
	if err != nil {
		if err == ErrNoContact {
			item.Outcome = OutcomeSkipped
			item.Detail = "no contact address for channel"
			return item
		}
		nerr := &NotificationError{Err: err}
		log.Printf("reminder send failed for plan %s: %v", cand.PlanUUID, nerr)
		item.Outcome = OutcomeError
		item.Detail = nerr.Error()
		return item
	}

	// The plan is only counted once the compare-and-set lands; a concurrent
	// run that already reminded this plan turns this into a skip.
	ok, err := d.Store.MarkReminded(ctx, cand.PlanID, cand.LastReminderSentAt, now)
	if err != nil {
		item.Outcome = OutcomeError
		item.Detail = "failed to record reminder: " + err.Error()
		return item
	}
	if !ok {
		item.Outcome = OutcomeSkipped
		item.Detail = "already reminded by a concurrent run"
		return item
	}

	item.Outcome = OutcomeSent
	return item
}

var reminderTemplates = map[ReminderCategory]struct {
	subject string
	body    string
}{
	CategoryPreDue: {
		subject: "Upcoming payment for your course",
		body:    "Hi $name, a payment of $amount for your course is due on $due_date. Please pay before the due date to keep your access uninterrupted.",
	},
	CategoryDueToday: {
		subject: "Payment due today",
		body:    "Hi $name, your payment of $amount is due today ($due_date). Please complete it today to avoid late reminders.",
	},
	CategoryOverdue: {
		subject: "Payment overdue",
		body:    "Hi $name, your payment of $amount was due on $due_date and is still outstanding. Please settle it as soon as possible.",
	},
}

func buildMessage(category ReminderCategory, name string, cand ReminderCandidate) ReminderMessage {
	tmpl := reminderTemplates[category]
	if name == "" {
		name = cand.AccountID
	}

	body := strings.ReplaceAll(tmpl.body, "$name", name)
	body = strings.ReplaceAll(body, "$amount", cand.Amount.String())
	body = strings.ReplaceAll(body, "$due_date", Midnight(cand.DueDate).Format("2006-01-02"))

	return ReminderMessage{Subject: tmpl.subject, Body: body}
}
