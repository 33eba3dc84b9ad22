package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"academy_billing_app/internal/models"
)

// Service is the billing façade. It owns plan creation, payment application
// and status changes, wrapping every mutation in a store transaction scoped
// to the single plan plus its audit log. Transaction aborts are retried
// exactly once before surfacing as a TransactionError.
type Service struct {
	db *gorm.DB
}

// NewService creates the billing façade on top of the given store.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// CreatePlanInput is everything needed to turn a course fee structure into a
// concrete payment plan.
type CreatePlanInput struct {
	TenantID  string
	AccountID string
	CourseID  string
	CohortID  string

	PlanType models.PlanType

	// One-time and installment plans.
	TotalAmount      decimal.Decimal
	StartDate        time.Time
	EndDate          time.Time
	InstallmentCount int // zero means the default of 3

	// Subscription plans.
	CourseFee       decimal.Decimal
	RegistrationFee decimal.Decimal
	MonthlyAmount   decimal.Decimal
	Discount        *DiscountConfig

	ContactEmail          string
	ContactPhone          string
	PartialPaymentAllowed bool
	DisableAutoStop       bool

	CreatedBy string
}

// CreatePlan generates and persists a payment plan for an enrollment.
func (s *Service) CreatePlan(ctx context.Context, in CreatePlanInput) (*models.PaymentPlan, error) {
	if in.TenantID == "" {
		return nil, validationErr("tenant_id", "is required")
	}
	if in.AccountID == "" {
		return nil, validationErr("account_id", "is required")
	}
	if in.CourseID == "" {
		return nil, validationErr("course_id", "is required")
	}

	plan := &models.PaymentPlan{
		UUID:                  uuid.New().String(),
		TenantID:              in.TenantID,
		AccountID:             in.AccountID,
		CourseID:              in.CourseID,
		CohortID:              in.CohortID,
		PlanType:              in.PlanType,
		Status:                models.PlanStatusActive,
		TotalPaidAmount:       decimal.Zero,
		AutoStopOnFullPayment: !in.DisableAutoStop,
		PartialPaymentAllowed: in.PartialPaymentAllowed,
		PreReminderEnabled:    true,
		ContactEmail:          in.ContactEmail,
		ContactPhone:          in.ContactPhone,
	}

	switch in.PlanType {
	case models.PlanTypeOneTime:
		due := in.EndDate
		if due.IsZero() {
			due = in.StartDate
		}
		installments, err := GenerateSinglePayment(due, in.TotalAmount)
		if err != nil {
			return nil, err
		}
		plan.TotalAmount = in.TotalAmount
		plan.Installments = installments

	case models.PlanTypeOneTimeWithInstallments, models.PlanTypeEMI:
		count := in.InstallmentCount
		if count == 0 {
			count = DefaultInstallmentCount
		}
		installments, err := GenerateInstallments(in.StartDate, in.EndDate, in.TotalAmount, count)
		if err != nil {
			return nil, err
		}
		plan.TotalAmount = in.TotalAmount
		plan.Installments = installments

	case models.PlanTypeMonthlySubscription, models.PlanTypeMonthlySubscriptionDiscounted:
		if in.PlanType == models.PlanTypeMonthlySubscriptionDiscounted && in.Discount == nil {
			return nil, validationErr("discount", "is required for discounted subscription plans")
		}
		anchor := in.StartDate
		if anchor.IsZero() {
			anchor = time.Now()
		}
		sub, err := GenerateSubscription(anchor, in.CourseFee, in.RegistrationFee, in.MonthlyAmount, in.Discount)
		if err != nil {
			return nil, err
		}
		plan.Subscription = sub
		if sub.RemainingAmount != nil {
			plan.TotalAmount = *sub.RemainingAmount
		}

	default:
		return nil, validationErr("plan_type", "unknown plan type "+string(in.PlanType))
	}

	plan.AuditLog = []models.AuditLogEntry{{
		Action:      models.AuditActionPlanCreated,
		PerformedBy: in.CreatedBy,
		PerformedAt: time.Now(),
		Details: map[string]interface{}{
			"plan_type":    string(in.PlanType),
			"total_amount": plan.TotalAmount.String(),
			"course_id":    in.CourseID,
		},
	}}

	err := s.runTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(plan).Error
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// GetPlan loads a plan with its children, scoped to the tenant.
func (s *Service) GetPlan(ctx context.Context, tenantID, planUUID string) (*models.PaymentPlan, error) {
	return s.loadPlan(s.db.WithContext(ctx), tenantID, planUUID)
}

// PlanByID loads a plan by its primary key. Gateway callbacks only carry the
// numeric id embedded in the order id, not the tenant-scoped uuid.
func (s *Service) PlanByID(ctx context.Context, planID uint) (*models.PaymentPlan, error) {
	var plan models.PaymentPlan
	err := s.db.WithContext(ctx).
		Preload("Installments", func(db *gorm.DB) *gorm.DB {
			return db.Order("installment_number")
		}).
		Preload("Subscription").
		First(&plan, planID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "plan", ID: fmt.Sprintf("%d", planID)}
		}
		return nil, err
	}
	return &plan, nil
}

// ApplyPayment applies one payment to the plan. Status, balances, the
// immutable PaymentRecord and the audit entries all land in one transaction;
// a failure at any step rolls the whole operation back.
func (s *Service) ApplyPayment(ctx context.Context, tenantID, planUUID string, in PaymentInput) (*models.PaymentPlan, error) {
	var updated *models.PaymentPlan
	err := s.runTx(ctx, func(tx *gorm.DB) error {
		plan, err := s.loadPlan(tx, tenantID, planUUID)
		if err != nil {
			return err
		}
		prevPaid := plan.TotalPaidAmount

		outcome, err := ApplyPayment(plan, in, time.Now())
		if err != nil {
			return err
		}

		if err := tx.Create(&outcome.Record).Error; err != nil {
			return err
		}
		for i := range outcome.Audit {
			if err := tx.Create(&outcome.Audit[i]).Error; err != nil {
				return err
			}
		}
		if outcome.Installment != nil {
			if err := tx.Save(outcome.Installment).Error; err != nil {
				return err
			}
		}
		if plan.Subscription != nil {
			if err := tx.Save(plan.Subscription).Error; err != nil {
				return err
			}
		}
		// Guarded by the paid total read at the start of the transaction; a
		// concurrent payment that landed in between makes this match nothing,
		// and the retry re-runs against the refreshed plan.
		res := tx.Model(&models.PaymentPlan{}).
			Where("id = ? AND total_paid_amount = ?", plan.ID, prevPaid).
			Updates(map[string]interface{}{
				"total_paid_amount": plan.TotalPaidAmount,
				"status":            plan.Status,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errConcurrentUpdate
		}

		updated = plan
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ChangeStatus applies a status transition and its audit trail atomically.
func (s *Service) ChangeStatus(ctx context.Context, tenantID, planUUID string, next models.PlanStatus, reason, actor string) (*models.PaymentPlan, error) {
	var updated *models.PaymentPlan
	err := s.runTx(ctx, func(tx *gorm.DB) error {
		plan, err := s.loadPlan(tx, tenantID, planUUID)
		if err != nil {
			return err
		}
		prevStatus := plan.Status

		entries, err := ChangeStatus(plan, next, reason, actor, time.Now())
		if err != nil {
			return err
		}

		for i := range entries {
			if err := tx.Create(&entries[i]).Error; err != nil {
				return err
			}
		}
		if plan.Subscription != nil {
			if err := tx.Save(plan.Subscription).Error; err != nil {
				return err
			}
		}
		res := tx.Model(&models.PaymentPlan{}).
			Where("id = ? AND status = ?", plan.ID, prevStatus).
			Update("status", plan.Status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errConcurrentUpdate
		}

		updated = plan
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) loadPlan(tx *gorm.DB, tenantID, planUUID string) (*models.PaymentPlan, error) {
	var plan models.PaymentPlan
	err := tx.
		Preload("Installments", func(db *gorm.DB) *gorm.DB {
			return db.Order("installment_number")
		}).
		Preload("Subscription").
		Where("tenant_id = ? AND uuid = ?", tenantID, planUUID).
		First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "plan", ID: planUUID}
		}
		return nil, err
	}
	return &plan, nil
}

// errConcurrentUpdate signals that the guarded plan update matched no row:
// another transaction changed the plan between our read and write. It is not a
// domain error, so runTx gives the operation one more attempt on fresh state.
var errConcurrentUpdate = errors.New("plan was modified concurrently")

// runTx executes fn in a transaction. Domain errors surface unchanged and
// are never retried; anything else gets exactly one more attempt before
// being wrapped in a TransactionError.
func (s *Service) runTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := s.db.WithContext(ctx).Transaction(fn)
	if err == nil || IsDomainError(err) {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(fn)
	if err == nil || IsDomainError(err) {
		return err
	}
	return &TransactionError{Err: err}
}
