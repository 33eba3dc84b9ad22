package models

import (
	"time"

	"gorm.io/gorm"
)

// AuditAction identifies the kind of state change recorded in the audit log
type AuditAction string

const (
	AuditActionPlanCreated    AuditAction = "PLAN_CREATED"
	AuditActionPaymentApplied AuditAction = "PAYMENT_APPLIED"
	AuditActionStatusChanged  AuditAction = "STATUS_CHANGED"
	AuditActionPlanCancelled  AuditAction = "PLAN_CANCELLED"
	AuditActionPlanCompleted  AuditAction = "PLAN_COMPLETED"
)

// AuditLogEntry is one append-only record of a state-changing operation on a
// plan. Entries are never deleted; ordering is creation order.
type AuditLogEntry struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	PlanID      uint                   `gorm:"index" json:"plan_id"`
	Action      AuditAction            `gorm:"type:varchar(50)" json:"action"`
	PerformedBy string                 `gorm:"type:varchar(255)" json:"performed_by"`
	PerformedAt time.Time              `json:"performed_at"`
	Details     map[string]interface{} `gorm:"serializer:json" json:"details"`
	Notes       string                 `gorm:"type:text" json:"notes"`
}
