package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentRecord is immutable, append-only evidence of a single payment applied
// to a plan. A plan's paid total is always derivable by summing its records;
// the cached TotalPaidAmount on the plan is only a fast path kept consistent
// inside the same transaction.
type PaymentRecord struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	PlanID uint   `gorm:"index" json:"plan_id"`
	UUID   string `gorm:"type:varchar(64);uniqueIndex" json:"uuid"`

	Amount      decimal.Decimal `gorm:"type:decimal(15,2)" json:"amount"`
	PaymentDate time.Time       `json:"payment_date"`
	Method      string          `gorm:"type:varchar(100)" json:"method"` // e.g. "bank_transfer", "e-wallet", "cash"
	ReceivedBy  string          `gorm:"type:varchar(255)" json:"received_by"`

	Gateway       PaymentGateway `gorm:"type:varchar(50);default:'manual'" json:"gateway"`
	TransactionID *string        `gorm:"type:varchar(100)" json:"transaction_id,omitempty"`

	// Exactly one of these is set, depending on the plan type.
	InstallmentNumber *int `json:"installment_number,omitempty"`
	SubscriptionMonth *int `json:"subscription_month,omitempty"`
}
