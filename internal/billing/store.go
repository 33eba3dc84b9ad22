package billing

import (
	"context"
	"time"

	"gorm.io/gorm"

	"academy_billing_app/internal/models"
)

// GormReminderStore is the GORM-backed ReminderStore. Its candidate query is
// deliberately a loose over-approximation (active plans only); the selector
// decides eligibility in-process.
type GormReminderStore struct {
	DB *gorm.DB
}

// ListCandidates returns up to limit active plans projected into reminder
// candidates. Plans with nothing outstanding are filtered here since they can
// never be eligible.
func (s *GormReminderStore) ListCandidates(ctx context.Context, now time.Time, limit int) ([]ReminderCandidate, error) {
	var plans []models.PaymentPlan
	err := s.DB.WithContext(ctx).
		Preload("Installments").
		Preload("Subscription").
		Where("status = ?", models.PlanStatusActive).
		Order("id").
		Limit(limit).
		Find(&plans).Error
	if err != nil {
		return nil, err
	}

	candidates := make([]ReminderCandidate, 0, len(plans))
	for i := range plans {
		plan := &plans[i]
		due, _, ok := plan.NextDueDate()
		if !ok {
			continue
		}

		amount := plan.OutstandingAmount()
		if plan.PlanType.IsSubscription() && plan.Subscription != nil {
			amount = plan.Subscription.MonthlyCharge()
		} else if inst := plan.NextUnpaidInstallment(); inst != nil {
			amount = inst.Amount
		}

		candidates = append(candidates, ReminderCandidate{
			PlanID:             plan.ID,
			PlanUUID:           plan.UUID,
			TenantID:           plan.TenantID,
			AccountID:          plan.AccountID,
			CourseID:           plan.CourseID,
			PlanType:           plan.PlanType,
			DueDate:            due,
			Amount:             amount,
			RemindersCount:     plan.RemindersCount,
			LastReminderSentAt: plan.LastReminderSentAt,
			PreReminderEnabled: plan.PreReminderEnabled,
			ContactEmail:       plan.ContactEmail,
			ContactPhone:       plan.ContactPhone,
		})
	}

	return candidates, nil
}

// MarkReminded performs the per-record compare-and-set on LastReminderSentAt.
// The WHERE clause on the previous value is what makes concurrent trigger
// sources safe without any in-process locking.
func (s *GormReminderStore) MarkReminded(ctx context.Context, planID uint, prev *time.Time, now time.Time) (bool, error) {
	query := s.DB.WithContext(ctx).
		Model(&models.PaymentPlan{}).
		Where("id = ?", planID)
	if prev == nil {
		query = query.Where("last_reminder_sent_at IS NULL")
	} else {
		query = query.Where("last_reminder_sent_at = ?", *prev)
	}

	res := query.Updates(map[string]interface{}{
		"reminders_count":       gorm.Expr("reminders_count + 1"),
		"last_reminder_sent_at": now,
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
