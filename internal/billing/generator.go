package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"academy_billing_app/internal/models"
)

// DefaultInstallmentCount is the product-rule split for one-time-with-
// installments plans. The generator accepts other counts (see EMI plans)
// but the service façade always passes this for the standard plan type.
const DefaultInstallmentCount = 3

const (
	minInstallmentCount = 2
	maxInstallmentCount = 12

	// Subscriptions are reminded a fixed lead time before each charge.
	subscriptionReminderLeadDays = 5
)

var oneHundred = decimal.NewFromInt(100)

// DiscountConfig describes a subscription discount commitment.
type DiscountConfig struct {
	Type             models.DiscountType `json:"type"`
	Value            decimal.Decimal     `json:"value"`
	CommitmentMonths int                 `json:"commitment_months"`
}

// Midnight normalizes a timestamp to the start of its UTC day. All due-date
// arithmetic in the engine happens on normalized days.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// GenerateInstallments splits the inclusive [start, end] span and the total
// amount into count installments.
//
// The span is divided into equal-length periods by integer day division; the
// final due date is clamped to end so rounding never pushes it past the plan
// duration. Amounts use floor(total/count) for every installment except the
// last, which absorbs the entire remainder, so the sum always equals total
// with no floating-point drift.
func GenerateInstallments(start, end time.Time, total decimal.Decimal, count int) ([]models.Installment, error) {
	startDay := Midnight(start)
	endDay := Midnight(end)

	if !startDay.Before(endDay) {
		return nil, validationErr("end_date", "must be after start date")
	}
	if !total.IsPositive() {
		return nil, validationErr("total_amount", "must be greater than zero")
	}
	if count < minInstallmentCount || count > maxInstallmentCount {
		return nil, validationErr("installment_count",
			fmt.Sprintf("must be between %d and %d", minInstallmentCount, maxInstallmentCount))
	}

	// Strictly more than one day per installment, otherwise clamping the last
	// due date to end would collide with the one before it.
	spanDays := int(endDay.Sub(startDay).Hours()/24) + 1
	if spanDays <= count {
		return nil, validationErr("end_date", "duration must allow more than one day per installment")
	}
	periodDays := spanDays / count

	countDec := decimal.NewFromInt(int64(count))
	base := total.Div(countDec).Floor()
	remainder := total.Sub(base.Mul(countDec))

	installments := make([]models.Installment, 0, count)
	for i := 1; i <= count; i++ {
		due := startDay.AddDate(0, 0, i*periodDays)
		if i == count || due.After(endDay) {
			due = endDay
		}

		amount := base
		if i == count {
			amount = base.Add(remainder)
		}

		policy := models.PolicyForStage(models.StageForPosition(i, count))
		installments = append(installments, models.Installment{
			InstallmentNumber: i,
			DueDate:           due,
			ReminderDate:      due.AddDate(0, 0, -policy.ReminderDaysBefore),
			Amount:            amount,
			Status:            models.InstallmentStatusUnpaid,
		})
	}

	return installments, nil
}

// GenerateSinglePayment builds the lone installment of a ONE_TIME plan, due
// on the given date.
func GenerateSinglePayment(due time.Time, total decimal.Decimal) ([]models.Installment, error) {
	if !total.IsPositive() {
		return nil, validationErr("total_amount", "must be greater than zero")
	}
	dueDay := Midnight(due)
	policy := models.PolicyForStage(models.StageForPosition(1, 1))
	return []models.Installment{{
		InstallmentNumber: 1,
		DueDate:           dueDay,
		ReminderDate:      dueDay.AddDate(0, 0, -policy.ReminderDaysBefore),
		Amount:            total,
		Status:            models.InstallmentStatusUnpaid,
	}}, nil
}

// GenerateSubscription initializes the recurring-billing state of a monthly
// plan anchored at the enrollment date. courseFee plus regFee, when positive,
// becomes the total-expected-amount ceiling tracked in RemainingAmount;
// otherwise the subscription is open-ended.
//
// Discounted plans must carry a complete DiscountConfig. Violations fail with
// a ValidationError naming the offending field, never a silent clamp.
func GenerateSubscription(anchor time.Time, courseFee, regFee, monthly decimal.Decimal, discount *DiscountConfig) (*models.Subscription, error) {
	if !monthly.IsPositive() {
		return nil, validationErr("monthly_amount", "must be greater than zero")
	}
	if courseFee.IsNegative() {
		return nil, validationErr("course_fee", "must not be negative")
	}
	if regFee.IsNegative() {
		return nil, validationErr("registration_fee", "must not be negative")
	}

	anchorDay := Midnight(anchor)
	nextDue := anchorDay.AddDate(0, 1, 0)

	sub := &models.Subscription{
		OriginalMonthlyAmount:   monthly,
		CurrentMonth:            1,
		IsFirstPaymentCompleted: false,
		NextDueDate:             nextDue,
		ReminderDate:            nextDue.AddDate(0, 0, -subscriptionReminderLeadDays),
		Status:                  models.SubscriptionStatusActive,
		TotalPaidAmount:         decimal.Zero,
	}

	if discount != nil {
		discounted, err := resolveDiscount(monthly, discount)
		if err != nil {
			return nil, err
		}
		commitment := discount.CommitmentMonths
		sub.DiscountedMonthlyAmount = &discounted
		sub.DiscountType = &discount.Type
		value := discount.Value
		sub.DiscountValue = &value
		sub.CommitmentPeriod = &commitment
	}

	if ceiling := courseFee.Add(regFee); ceiling.IsPositive() {
		sub.RemainingAmount = &ceiling
	}

	return sub, nil
}

func resolveDiscount(monthly decimal.Decimal, discount *DiscountConfig) (decimal.Decimal, error) {
	if discount.Type == "" {
		return decimal.Zero, validationErr("discount_type", "is required for discounted plans")
	}
	if discount.Value.IsZero() {
		return decimal.Zero, validationErr("discount_value", "is required for discounted plans")
	}
	if discount.CommitmentMonths == 0 {
		return decimal.Zero, validationErr("commitment_period", "is required for discounted plans")
	}
	if !models.IsValidCommitmentPeriod(discount.CommitmentMonths) {
		return decimal.Zero, validationErr("commitment_period",
			fmt.Sprintf("must be one of %v months", models.CommitmentPeriods))
	}

	switch discount.Type {
	case models.DiscountTypePercentage:
		if !discount.Value.IsPositive() || discount.Value.GreaterThanOrEqual(oneHundred) {
			return decimal.Zero, validationErr("discount_value", "percentage must be strictly between 0 and 100")
		}
		return monthly.Sub(monthly.Mul(discount.Value).Div(oneHundred)).Round(2), nil
	case models.DiscountTypeAmount:
		if !discount.Value.IsPositive() || discount.Value.GreaterThanOrEqual(monthly) {
			return decimal.Zero, validationErr("discount_value", "amount must be positive and below the monthly amount")
		}
		return monthly.Sub(discount.Value), nil
	default:
		return decimal.Zero, validationErr("discount_type", "must be 'percentage' or 'amount'")
	}
}
