package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// PaymentSession tracks an in-flight gateway checkout for a plan, so a pending
// Snap transaction can be resumed instead of duplicated.
type PaymentSession struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	PlanID            uint           `gorm:"index" json:"plan_id"`
	TenantID          string         `gorm:"type:varchar(64)" json:"tenant_id"`
	InstallmentNumber *int           `json:"installment_number,omitempty"`
	PaymentGateway    PaymentGateway `gorm:"type:varchar(50);not null" json:"payment_gateway"`
	OrderID           string         `gorm:"type:varchar(100);index" json:"order_id"`
	IsActive          bool           `gorm:"default:true" json:"is_active"`

	RequestMetadata  json.RawMessage `gorm:"type:jsonb" json:"request_metadata"`
	ResponseMetadata json.RawMessage `gorm:"type:jsonb" json:"response_metadata"`
}
