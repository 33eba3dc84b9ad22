package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"academy_billing_app/internal/models"
)

// planTransitions is the legal status transition table. CANCELLED and
// COMPLETED are terminal; COMPLETED is only reachable internally when a plan
// is paid in full, never via a status-change request.
var planTransitions = map[models.PlanStatus][]models.PlanStatus{
	models.PlanStatusActive:    {models.PlanStatusPaused, models.PlanStatusCancelled},
	models.PlanStatusPaused:    {models.PlanStatusActive, models.PlanStatusCancelled},
	models.PlanStatusCancelled: {},
	models.PlanStatusCompleted: {},
}

// CanTransition reports whether the transition table permits current→next.
func CanTransition(current, next models.PlanStatus) bool {
	for _, allowed := range planTransitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ChangeStatus applies a requested status change to the plan in memory and
// returns the audit entries the caller must persist in the same transaction.
// Illegal transitions fail with InvalidTransitionError and leave the plan
// untouched.
func ChangeStatus(plan *models.PaymentPlan, next models.PlanStatus, reason, actor string, now time.Time) ([]models.AuditLogEntry, error) {
	switch next {
	case models.PlanStatusActive, models.PlanStatusPaused, models.PlanStatusCancelled, models.PlanStatusCompleted:
	default:
		return nil, validationErr("status", "unknown status "+string(next))
	}

	if !CanTransition(plan.Status, next) {
		return nil, &InvalidTransitionError{From: string(plan.Status), To: string(next)}
	}

	old := plan.Status
	plan.Status = next
	if plan.Subscription != nil {
		plan.Subscription.Status = models.SubscriptionStatus(next)
	}

	entries := []models.AuditLogEntry{{
		PlanID:      plan.ID,
		Action:      models.AuditActionStatusChanged,
		PerformedBy: actor,
		PerformedAt: now,
		Details: map[string]interface{}{
			"old":    string(old),
			"new":    string(next),
			"reason": reason,
		},
	}}

	if next == models.PlanStatusCancelled {
		entries = append(entries, models.AuditLogEntry{
			PlanID:      plan.ID,
			Action:      models.AuditActionPlanCancelled,
			PerformedBy: actor,
			PerformedAt: now,
			Details:     financialSnapshot(plan),
			Notes:       reason,
		})
	}

	return entries, nil
}

// financialSnapshot captures the pre-cancellation money state for traceability.
func financialSnapshot(plan *models.PaymentPlan) map[string]interface{} {
	snapshot := map[string]interface{}{
		"plan_type":         string(plan.PlanType),
		"total_amount":      plan.TotalAmount.String(),
		"total_paid_amount": plan.TotalPaidAmount.String(),
		"outstanding":       plan.OutstandingAmount().String(),
		"reminders_count":   plan.RemindersCount,
	}
	if plan.Subscription != nil {
		snapshot["current_month"] = plan.Subscription.CurrentMonth
		snapshot["subscription_paid"] = plan.Subscription.TotalPaidAmount.String()
	}
	return snapshot
}

// PaymentInput carries one payment to apply to a plan.
type PaymentInput struct {
	Amount        decimal.Decimal
	Method        string
	PaymentDate   time.Time
	ReceivedBy    string
	Gateway       models.PaymentGateway
	TransactionID string
}

// ApplyOutcome is everything a payment application produced. The façade
// persists all of it inside one store transaction: the mutated installment or
// subscription, the new immutable PaymentRecord, and the audit entries.
type ApplyOutcome struct {
	Record      models.PaymentRecord
	Audit       []models.AuditLogEntry
	Installment *models.Installment
	Completed   bool
}

// ApplyPayment applies a payment to the plan in memory and returns the
// outcome to persist. Validation failures leave the plan untouched.
func ApplyPayment(plan *models.PaymentPlan, in PaymentInput, now time.Time) (*ApplyOutcome, error) {
	if plan.Status.IsTerminal() {
		return nil, validationErr("status", "plan is "+string(plan.Status)+" and no longer accepts payments")
	}
	if plan.Status == models.PlanStatusPaused {
		return nil, validationErr("status", "plan is PAUSED; resume it before applying payments")
	}
	if !in.Amount.IsPositive() {
		return nil, validationErr("amount", "must be greater than zero")
	}

	if in.PaymentDate.IsZero() {
		in.PaymentDate = now
	}
	if in.Gateway == "" {
		in.Gateway = models.PaymentGatewayManual
	}

	if plan.PlanType.IsSubscription() {
		return applySubscriptionPayment(plan, in, now)
	}
	return applyInstallmentPayment(plan, in, now)
}

func applyInstallmentPayment(plan *models.PaymentPlan, in PaymentInput, now time.Time) (*ApplyOutcome, error) {
	inst := plan.NextUnpaidInstallment()
	if inst == nil {
		return nil, validationErr("amount", "plan has no unpaid installments")
	}

	alreadyPaid := decimal.Zero
	if inst.PaidAmount != nil {
		alreadyPaid = *inst.PaidAmount
	}
	outstanding := inst.Amount.Sub(alreadyPaid)

	if in.Amount.GreaterThan(outstanding) {
		return nil, validationErr("amount", "exceeds the outstanding installment amount "+outstanding.String())
	}
	if !plan.PartialPaymentAllowed && !in.Amount.Equal(outstanding) {
		return nil, validationErr("amount", "partial payment is not allowed; expected "+outstanding.String())
	}

	paid := alreadyPaid.Add(in.Amount)
	inst.PaidAmount = &paid
	settled := paid.Equal(inst.Amount)
	if settled {
		inst.Status = models.InstallmentStatusPaid
		paidDate := in.PaymentDate
		inst.PaidDate = &paidDate
		if in.TransactionID != "" {
			txID := in.TransactionID
			inst.TransactionID = &txID
		}
	}

	plan.TotalPaidAmount = plan.TotalPaidAmount.Add(in.Amount)

	number := inst.InstallmentNumber
	outcome := &ApplyOutcome{
		Record: models.PaymentRecord{
			PlanID:            plan.ID,
			UUID:              uuid.New().String(),
			Amount:            in.Amount,
			PaymentDate:       in.PaymentDate,
			Method:            in.Method,
			ReceivedBy:        in.ReceivedBy,
			Gateway:           in.Gateway,
			InstallmentNumber: &number,
		},
		Installment: inst,
	}
	if in.TransactionID != "" {
		txID := in.TransactionID
		outcome.Record.TransactionID = &txID
	}

	outcome.Audit = append(outcome.Audit, models.AuditLogEntry{
		PlanID:      plan.ID,
		Action:      models.AuditActionPaymentApplied,
		PerformedBy: in.ReceivedBy,
		PerformedAt: now,
		Details: map[string]interface{}{
			"installment_number": number,
			"amount":             in.Amount.String(),
			"method":             in.Method,
			"settled":            settled,
		},
	})

	if plan.AutoStopOnFullPayment && allInstallmentsPaid(plan) {
		plan.Status = models.PlanStatusCompleted
		outcome.Completed = true
		outcome.Audit = append(outcome.Audit, completionEntry(plan, in.ReceivedBy, now))
	}

	return outcome, nil
}

func applySubscriptionPayment(plan *models.PaymentPlan, in PaymentInput, now time.Time) (*ApplyOutcome, error) {
	sub := plan.Subscription
	if sub == nil {
		return nil, validationErr("plan_type", "subscription plan is missing its subscription record")
	}
	if sub.Status != models.SubscriptionStatusActive {
		return nil, validationErr("status", "subscription is "+string(sub.Status))
	}

	charge := sub.MonthlyCharge()
	if !plan.PartialPaymentAllowed && !in.Amount.Equal(charge) {
		return nil, validationErr("amount", "expected the monthly charge "+charge.String())
	}

	month := sub.CurrentMonth
	sub.TotalPaidAmount = sub.TotalPaidAmount.Add(in.Amount)
	plan.TotalPaidAmount = plan.TotalPaidAmount.Add(in.Amount)
	sub.CurrentMonth++
	if sub.CurrentMonth == 2 {
		sub.IsFirstPaymentCompleted = true
	}

	// The next cycle anchors on the payment date, not the previous due date,
	// so a late payment does not immediately fall due again.
	paidDay := Midnight(in.PaymentDate)
	sub.NextDueDate = paidDay.AddDate(0, 1, 0)
	sub.ReminderDate = sub.NextDueDate.AddDate(0, 0, -subscriptionReminderLeadDays)

	outcome := &ApplyOutcome{
		Record: models.PaymentRecord{
			PlanID:            plan.ID,
			UUID:              uuid.New().String(),
			Amount:            in.Amount,
			PaymentDate:       in.PaymentDate,
			Method:            in.Method,
			ReceivedBy:        in.ReceivedBy,
			Gateway:           in.Gateway,
			SubscriptionMonth: &month,
		},
	}
	if in.TransactionID != "" {
		txID := in.TransactionID
		outcome.Record.TransactionID = &txID
	}

	outcome.Audit = append(outcome.Audit, models.AuditLogEntry{
		PlanID:      plan.ID,
		Action:      models.AuditActionPaymentApplied,
		PerformedBy: in.ReceivedBy,
		PerformedAt: now,
		Details: map[string]interface{}{
			"subscription_month": month,
			"amount":             in.Amount.String(),
			"method":             in.Method,
		},
	})

	if sub.RemainingAmount != nil {
		remaining := sub.RemainingAmount.Sub(in.Amount)
		if remaining.LessThanOrEqual(decimal.Zero) {
			remaining = decimal.Zero
			sub.Status = models.SubscriptionStatusCompleted
			if plan.AutoStopOnFullPayment {
				plan.Status = models.PlanStatusCompleted
				outcome.Completed = true
				outcome.Audit = append(outcome.Audit, completionEntry(plan, in.ReceivedBy, now))
			}
		}
		sub.RemainingAmount = &remaining
	}

	return outcome, nil
}

func allInstallmentsPaid(plan *models.PaymentPlan) bool {
	if len(plan.Installments) == 0 {
		return false
	}
	for i := range plan.Installments {
		if plan.Installments[i].Status != models.InstallmentStatusPaid {
			return false
		}
	}
	return true
}

func completionEntry(plan *models.PaymentPlan, actor string, now time.Time) models.AuditLogEntry {
	return models.AuditLogEntry{
		PlanID:      plan.ID,
		Action:      models.AuditActionPlanCompleted,
		PerformedBy: actor,
		PerformedAt: now,
		Details: map[string]interface{}{
			"total_paid_amount": plan.TotalPaidAmount.String(),
		},
	}
}
