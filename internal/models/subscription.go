package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SubscriptionStatus represents the lifecycle status of a monthly subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPaused    SubscriptionStatus = "PAUSED"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
	SubscriptionStatusCompleted SubscriptionStatus = "COMPLETED"
)

// DiscountType describes how a subscription discount is expressed
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeAmount     DiscountType = "amount"
)

// CommitmentPeriods are the allowed discount commitment lengths in months.
var CommitmentPeriods = []int{3, 6, 9, 12, 24}

// IsValidCommitmentPeriod reports whether months is an allowed commitment length.
func IsValidCommitmentPeriod(months int) bool {
	for _, m := range CommitmentPeriods {
		if m == months {
			return true
		}
	}
	return false
}

// Subscription holds the recurring-billing state of a monthly plan,
// optionally with a time-boxed discount commitment.
type Subscription struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	PlanID uint `gorm:"uniqueIndex" json:"plan_id"`

	OriginalMonthlyAmount   decimal.Decimal  `gorm:"type:decimal(15,2)" json:"original_monthly_amount"`
	DiscountedMonthlyAmount *decimal.Decimal `gorm:"type:decimal(15,2)" json:"discounted_monthly_amount,omitempty"`
	DiscountType            *DiscountType    `gorm:"type:varchar(20)" json:"discount_type,omitempty"`
	DiscountValue           *decimal.Decimal `gorm:"type:decimal(15,2)" json:"discount_value,omitempty"`
	CommitmentPeriod        *int             `json:"commitment_period,omitempty"`

	CurrentMonth            int                `gorm:"default:1" json:"current_month"`
	IsFirstPaymentCompleted bool               `gorm:"default:false" json:"is_first_payment_completed"`
	NextDueDate             time.Time          `json:"next_due_date"`
	ReminderDate            time.Time          `json:"reminder_date"`
	Status                  SubscriptionStatus `gorm:"type:varchar(20);default:'ACTIVE'" json:"status"`

	TotalPaidAmount decimal.Decimal `gorm:"type:decimal(15,2)" json:"total_paid_amount"`
	// RemainingAmount is nil for open-ended subscriptions without a
	// total-expected-amount ceiling.
	RemainingAmount *decimal.Decimal `gorm:"type:decimal(15,2)" json:"remaining_amount,omitempty"`
}

// IsCurrentlyDiscounted reports whether the discounted amount applies to the
// current month: the subscription carries a discount and the current month is
// still within the commitment period.
func (s Subscription) IsCurrentlyDiscounted() bool {
	if s.DiscountedMonthlyAmount == nil || s.CommitmentPeriod == nil {
		return false
	}
	return s.CurrentMonth <= *s.CommitmentPeriod
}

// MonthlyCharge returns the amount due for the current month.
func (s Subscription) MonthlyCharge() decimal.Decimal {
	if s.IsCurrentlyDiscounted() {
		return *s.DiscountedMonthlyAmount
	}
	return s.OriginalMonthlyAmount
}
