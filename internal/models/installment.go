package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InstallmentStatus represents the payment state of a single installment
type InstallmentStatus string

const (
	InstallmentStatusUnpaid InstallmentStatus = "UNPAID"
	InstallmentStatusPaid   InstallmentStatus = "PAID"
)

// InstallmentStage classifies an installment by its position in the plan.
// The stage is always derived from position, never stored, so position and
// policy flags cannot disagree.
type InstallmentStage string

const (
	StageFirst  InstallmentStage = "first"
	StageMiddle InstallmentStage = "middle"
	StageLast   InstallmentStage = "last"
)

// StagePolicy fixes the per-installment policy flags for a stage.
type StagePolicy struct {
	ReminderDaysBefore int  `json:"reminder_days_before"`
	InvoiceOnPayment   bool `json:"invoice_on_payment"`
	FinalInvoice       bool `json:"final_invoice"`
	StopReminderToggle bool `json:"stop_reminder_toggle"`
	StopAccessToggle   bool `json:"stop_access_toggle"`
}

var stagePolicies = map[InstallmentStage]StagePolicy{
	StageFirst:  {ReminderDaysBefore: 2},
	StageMiddle: {ReminderDaysBefore: 2, InvoiceOnPayment: true, StopReminderToggle: true, StopAccessToggle: true},
	StageLast:   {ReminderDaysBefore: 2, InvoiceOnPayment: true, FinalInvoice: true, StopReminderToggle: true, StopAccessToggle: true},
}

// PolicyForStage returns the static policy table entry for a stage.
func PolicyForStage(stage InstallmentStage) StagePolicy {
	return stagePolicies[stage]
}

// StageForPosition derives the stage from a 1-based position within a plan
// of the given size. A single-installment plan is treated as "last" so the
// final-invoice flag applies to its only payment.
func StageForPosition(number, count int) InstallmentStage {
	switch {
	case number >= count:
		return StageLast
	case number <= 1:
		return StageFirst
	default:
		return StageMiddle
	}
}

// Installment is one scheduled partial payment within an installment plan.
type Installment struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	PlanID            uint              `gorm:"index" json:"plan_id"`
	InstallmentNumber int               `json:"installment_number"`
	DueDate           time.Time         `json:"due_date"`
	ReminderDate      time.Time         `json:"reminder_date"`
	Amount            decimal.Decimal   `gorm:"type:decimal(15,2)" json:"amount"`
	Status            InstallmentStatus `gorm:"type:varchar(20);default:'UNPAID'" json:"status"`

	PaidDate      *time.Time       `json:"paid_date,omitempty"`
	PaidAmount    *decimal.Decimal `gorm:"type:decimal(15,2)" json:"paid_amount,omitempty"`
	TransactionID *string          `gorm:"type:varchar(100)" json:"transaction_id,omitempty"`
}

// Stage derives the installment's stage within a plan of the given size.
func (i Installment) Stage(count int) InstallmentStage {
	return StageForPosition(i.InstallmentNumber, count)
}

// Policy returns the stage-derived policy flags within a plan of the given size.
func (i Installment) Policy(count int) StagePolicy {
	return PolicyForStage(i.Stage(count))
}
