package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PlanType discriminates how a course fee is collected over time
type PlanType string

const (
	PlanTypeOneTime                       PlanType = "ONE_TIME"
	PlanTypeOneTimeWithInstallments       PlanType = "ONE_TIME_WITH_INSTALLMENTS"
	PlanTypeMonthlySubscription           PlanType = "MONTHLY_SUBSCRIPTION"
	PlanTypeMonthlySubscriptionDiscounted PlanType = "MONTHLY_SUBSCRIPTION_DISCOUNTED"
	PlanTypeEMI                           PlanType = "EMI"
)

// IsSubscription reports whether the plan bills monthly
func (t PlanType) IsSubscription() bool {
	return t == PlanTypeMonthlySubscription || t == PlanTypeMonthlySubscriptionDiscounted
}

// IsInstallment reports whether the plan is collected in scheduled installments
func (t PlanType) IsInstallment() bool {
	return t == PlanTypeOneTimeWithInstallments || t == PlanTypeEMI
}

// PlanStatus represents the lifecycle status of a payment plan
type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "ACTIVE"
	PlanStatusPaused    PlanStatus = "PAUSED"
	PlanStatusCancelled PlanStatus = "CANCELLED"
	PlanStatusCompleted PlanStatus = "COMPLETED"
)

// IsTerminal reports whether the status permits no further transitions
func (s PlanStatus) IsTerminal() bool {
	return s == PlanStatusCancelled || s == PlanStatusCompleted
}

// PaymentPlan is the persisted record describing how a student's course fee
// is collected over time. It exclusively owns its installments, subscription
// fields and audit log; account and course are non-owning references into
// the directory.
type PaymentPlan struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UUID      string `gorm:"type:varchar(64);uniqueIndex" json:"uuid"`
	TenantID  string `gorm:"type:varchar(64);index" json:"tenant_id"`
	AccountID string `gorm:"type:varchar(64);index" json:"account_id"`
	CourseID  string `gorm:"type:varchar(64)" json:"course_id"`
	CohortID  string `gorm:"type:varchar(64)" json:"cohort_id"`

	PlanType PlanType   `gorm:"type:varchar(40)" json:"plan_type"`
	Status   PlanStatus `gorm:"type:varchar(20);default:'ACTIVE';index" json:"status"`

	TotalAmount     decimal.Decimal `gorm:"type:decimal(15,2)" json:"total_amount"`
	TotalPaidAmount decimal.Decimal `gorm:"type:decimal(15,2)" json:"total_paid_amount"`

	AutoStopOnFullPayment bool `gorm:"default:true" json:"auto_stop_on_full_payment"`
	PartialPaymentAllowed bool `gorm:"default:false" json:"partial_payment_allowed"`
	PreReminderEnabled    bool `gorm:"default:true" json:"pre_reminder_enabled"`

	// Reminder counters, updated only via the compare-and-set described in
	// the dispatcher. Payer contact is denormalized from the directory at
	// enrollment time; the dispatcher falls back to a lookup when empty.
	RemindersCount     int        `gorm:"default:0" json:"reminders_count"`
	LastReminderSentAt *time.Time `json:"last_reminder_sent_at"`
	ContactEmail       string     `gorm:"type:varchar(255)" json:"contact_email"`
	ContactPhone       string     `gorm:"type:varchar(50)" json:"contact_phone"`

	// Relationships
	Installments []Installment   `gorm:"foreignKey:PlanID" json:"installments,omitempty"`
	Subscription *Subscription   `gorm:"foreignKey:PlanID" json:"subscription,omitempty"`
	Payments     []PaymentRecord `gorm:"foreignKey:PlanID" json:"payments,omitempty"`
	AuditLog     []AuditLogEntry `gorm:"foreignKey:PlanID" json:"audit_log,omitempty"`
}

// OutstandingAmount returns how much of the plan total is still unpaid.
func (p PaymentPlan) OutstandingAmount() decimal.Decimal {
	return p.TotalAmount.Sub(p.TotalPaidAmount)
}

// NextUnpaidInstallment returns the lowest-numbered UNPAID installment, or
// nil when everything is settled. Installments are kept in number order by
// the generator, but the scan does not rely on it.
func (p *PaymentPlan) NextUnpaidInstallment() *Installment {
	var next *Installment
	for i := range p.Installments {
		inst := &p.Installments[i]
		if inst.Status != InstallmentStatusUnpaid {
			continue
		}
		if next == nil || inst.InstallmentNumber < next.InstallmentNumber {
			next = inst
		}
	}
	return next
}

// NextDueDate returns the upcoming due date the reminder job should evaluate:
// the next unpaid installment for installment plans, the subscription's next
// charge date for monthly plans. ok is false when nothing is outstanding.
func (p *PaymentPlan) NextDueDate() (due time.Time, reminder time.Time, ok bool) {
	if p.PlanType.IsSubscription() {
		if p.Subscription == nil || p.Subscription.Status != SubscriptionStatusActive {
			return time.Time{}, time.Time{}, false
		}
		return p.Subscription.NextDueDate, p.Subscription.ReminderDate, true
	}
	inst := p.NextUnpaidInstallment()
	if inst == nil {
		return time.Time{}, time.Time{}, false
	}
	return inst.DueDate, inst.ReminderDate, true
}
