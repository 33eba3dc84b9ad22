package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy_billing_app/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerateInstallmentsEvenSplit(t *testing.T) {
	installments, err := GenerateInstallments(
		date(2026, 1, 1), date(2026, 1, 31), decimal.NewFromInt(3000), 3)
	require.NoError(t, err)
	require.Len(t, installments, 3)

	// 31-day span, 3 periods of 10 days each.
	assert.Equal(t, date(2026, 1, 11), installments[0].DueDate)
	assert.Equal(t, date(2026, 1, 21), installments[1].DueDate)
	assert.Equal(t, date(2026, 1, 31), installments[2].DueDate)

	for i, inst := range installments {
		assert.Equal(t, i+1, inst.InstallmentNumber)
		assert.True(t, decimal.NewFromInt(1000).Equal(inst.Amount), "installment %d amount = %s", i+1, inst.Amount)
		assert.Equal(t, models.InstallmentStatusUnpaid, inst.Status)
	}
}

func TestGenerateInstallmentsRemainderOnLast(t *testing.T) {
	installments, err := GenerateInstallments(
		date(2026, 1, 1), date(2026, 1, 31), decimal.NewFromInt(100), 3)
	require.NoError(t, err)
	require.Len(t, installments, 3)

	assert.True(t, decimal.NewFromInt(33).Equal(installments[0].Amount))
	assert.True(t, decimal.NewFromInt(33).Equal(installments[1].Amount))
	assert.True(t, decimal.NewFromInt(34).Equal(installments[2].Amount))
}

func TestGenerateInstallmentsShortSpan(t *testing.T) {
	installments, err := GenerateInstallments(
		date(2026, 1, 1), date(2026, 1, 10), decimal.NewFromInt(100), 3)
	require.NoError(t, err)
	require.Len(t, installments, 3)

	// 10-day inclusive span, 3-day periods.
	assert.Equal(t, date(2026, 1, 4), installments[0].DueDate)
	assert.Equal(t, date(2026, 1, 7), installments[1].DueDate)
	assert.Equal(t, date(2026, 1, 10), installments[2].DueDate)
}

func TestGenerateInstallmentsMinimalSpan(t *testing.T) {
	// A span of exactly one day per installment would put the clamped final
	// due date on top of the one before it, so it is rejected outright.
	_, err := GenerateInstallments(
		date(2026, 1, 1), date(2026, 1, 3), decimal.NewFromInt(300), 3)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "end_date", verr.Field)

	// One extra day is the smallest span that keeps due dates distinct.
	installments, err := GenerateInstallments(
		date(2026, 1, 1), date(2026, 1, 4), decimal.NewFromInt(300), 3)
	require.NoError(t, err)
	require.Len(t, installments, 3)
	assert.Equal(t, date(2026, 1, 2), installments[0].DueDate)
	assert.Equal(t, date(2026, 1, 3), installments[1].DueDate)
	assert.Equal(t, date(2026, 1, 4), installments[2].DueDate)
}

func TestGenerateInstallmentsStrictlyAscendingDueDates(t *testing.T) {
	for span := 4; span <= 40; span++ {
		for count := 2; count <= 12 && count < span; count++ {
			installments, err := GenerateInstallments(
				date(2026, 1, 1), date(2026, 1, 1).AddDate(0, 0, span-1),
				decimal.NewFromInt(1200), count)
			require.NoError(t, err, "span=%d count=%d", span, count)

			for i := 1; i < len(installments); i++ {
				assert.True(t, installments[i].DueDate.After(installments[i-1].DueDate),
					"span=%d count=%d: #%d %s vs #%d %s", span, count,
					i, installments[i-1].DueDate.Format("2006-01-02"),
					i+1, installments[i].DueDate.Format("2006-01-02"))
			}
		}
	}
}

func TestGenerateInstallmentsLastDueClampedToEnd(t *testing.T) {
	installments, err := GenerateInstallments(
		date(2026, 1, 1), date(2026, 1, 8), decimal.NewFromInt(90), 3)
	require.NoError(t, err)

	last := installments[len(installments)-1]
	assert.Equal(t, date(2026, 1, 8), last.DueDate)
	for i := 1; i < len(installments); i++ {
		assert.True(t, installments[i].DueDate.After(installments[i-1].DueDate),
			"due dates must be strictly ascending")
	}
}

func TestGenerateInstallmentsConservation(t *testing.T) {
	totals := []string{"3000", "100", "999.99", "1234.56", "7"}
	for _, raw := range totals {
		total := decimal.RequireFromString(raw)
		for count := 2; count <= 12; count++ {
			installments, err := GenerateInstallments(
				date(2026, 1, 1), date(2026, 12, 31), total, count)
			require.NoError(t, err, "total=%s count=%d", raw, count)

			sum := decimal.Zero
			for _, inst := range installments {
				sum = sum.Add(inst.Amount)
			}
			assert.True(t, sum.Equal(total), "total=%s count=%d sum=%s", raw, count, sum)
		}
	}
}

func TestGenerateInstallmentsReminderDates(t *testing.T) {
	installments, err := GenerateInstallments(
		date(2026, 1, 1), date(2026, 1, 31), decimal.NewFromInt(3000), 3)
	require.NoError(t, err)

	for _, inst := range installments {
		assert.Equal(t, inst.DueDate.AddDate(0, 0, -2), inst.ReminderDate)
	}
}

func TestGenerateInstallmentsStagePolicies(t *testing.T) {
	first := models.PolicyForStage(models.StageForPosition(1, 3))
	middle := models.PolicyForStage(models.StageForPosition(2, 3))
	last := models.PolicyForStage(models.StageForPosition(3, 3))

	assert.False(t, first.InvoiceOnPayment)
	assert.False(t, first.FinalInvoice)

	assert.True(t, middle.InvoiceOnPayment)
	assert.False(t, middle.FinalInvoice)

	assert.True(t, last.InvoiceOnPayment)
	assert.True(t, last.FinalInvoice)

	// The sole installment of a single-payment plan counts as last.
	assert.Equal(t, models.StageLast, models.StageForPosition(1, 1))
}

func TestGenerateInstallmentsValidation(t *testing.T) {
	total := decimal.NewFromInt(100)

	cases := []struct {
		name  string
		start time.Time
		end   time.Time
		total decimal.Decimal
		count int
		field string
	}{
		{"end before start", date(2026, 2, 1), date(2026, 1, 1), total, 3, "end_date"},
		{"end equals start", date(2026, 1, 1), date(2026, 1, 1), total, 3, "end_date"},
		{"zero total", date(2026, 1, 1), date(2026, 1, 31), decimal.Zero, 3, "total_amount"},
		{"negative total", date(2026, 1, 1), date(2026, 1, 31), decimal.NewFromInt(-5), 3, "total_amount"},
		{"count too low", date(2026, 1, 1), date(2026, 1, 31), total, 1, "installment_count"},
		{"count too high", date(2026, 1, 1), date(2026, 1, 31), total, 13, "installment_count"},
		{"span too short for count", date(2026, 1, 1), date(2026, 1, 3), total, 4, "end_date"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := GenerateInstallments(tc.start, tc.end, tc.total, tc.count)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestGenerateSinglePayment(t *testing.T) {
	installments, err := GenerateSinglePayment(
		time.Date(2026, 3, 15, 17, 30, 0, 0, time.UTC), decimal.NewFromInt(500))
	require.NoError(t, err)
	require.Len(t, installments, 1)

	inst := installments[0]
	assert.Equal(t, 1, inst.InstallmentNumber)
	assert.Equal(t, date(2026, 3, 15), inst.DueDate)
	assert.True(t, decimal.NewFromInt(500).Equal(inst.Amount))

	_, err = GenerateSinglePayment(date(2026, 3, 15), decimal.Zero)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestGenerateSubscription(t *testing.T) {
	anchor := date(2026, 1, 15)
	sub, err := GenerateSubscription(anchor,
		decimal.NewFromInt(6000), decimal.NewFromInt(500), decimal.NewFromInt(500), nil)
	require.NoError(t, err)

	assert.Equal(t, date(2026, 2, 15), sub.NextDueDate)
	assert.Equal(t, date(2026, 2, 10), sub.ReminderDate)
	assert.Equal(t, 1, sub.CurrentMonth)
	assert.False(t, sub.IsFirstPaymentCompleted)
	require.NotNil(t, sub.RemainingAmount)
	assert.True(t, decimal.NewFromInt(6500).Equal(*sub.RemainingAmount))
	assert.True(t, decimal.NewFromInt(500).Equal(sub.MonthlyCharge()))
}

func TestGenerateSubscriptionOpenEnded(t *testing.T) {
	sub, err := GenerateSubscription(date(2026, 1, 1),
		decimal.Zero, decimal.Zero, decimal.NewFromInt(300), nil)
	require.NoError(t, err)
	assert.Nil(t, sub.RemainingAmount)
}

func TestGenerateSubscriptionPercentageDiscount(t *testing.T) {
	sub, err := GenerateSubscription(date(2026, 1, 1),
		decimal.NewFromInt(6000), decimal.Zero, decimal.NewFromInt(500),
		&DiscountConfig{
			Type:             models.DiscountTypePercentage,
			Value:            decimal.NewFromInt(10),
			CommitmentMonths: 6,
		})
	require.NoError(t, err)

	require.NotNil(t, sub.DiscountedMonthlyAmount)
	assert.True(t, decimal.NewFromInt(450).Equal(*sub.DiscountedMonthlyAmount))
	assert.True(t, sub.IsCurrentlyDiscounted())
	assert.True(t, decimal.NewFromInt(450).Equal(sub.MonthlyCharge()))

	// Past the commitment the original amount applies again.
	sub.CurrentMonth = 7
	assert.False(t, sub.IsCurrentlyDiscounted())
	assert.True(t, decimal.NewFromInt(500).Equal(sub.MonthlyCharge()))
}

func TestGenerateSubscriptionAmountDiscount(t *testing.T) {
	sub, err := GenerateSubscription(date(2026, 1, 1),
		decimal.Zero, decimal.Zero, decimal.NewFromInt(500),
		&DiscountConfig{
			Type:             models.DiscountTypeAmount,
			Value:            decimal.NewFromInt(75),
			CommitmentMonths: 3,
		})
	require.NoError(t, err)

	require.NotNil(t, sub.DiscountedMonthlyAmount)
	assert.True(t, decimal.NewFromInt(425).Equal(*sub.DiscountedMonthlyAmount))
}

func TestGenerateSubscriptionDiscountValidation(t *testing.T) {
	monthly := decimal.NewFromInt(500)

	cases := []struct {
		name     string
		discount *DiscountConfig
		field    string
	}{
		{"missing type", &DiscountConfig{Value: decimal.NewFromInt(10), CommitmentMonths: 6}, "discount_type"},
		{"missing value", &DiscountConfig{Type: models.DiscountTypePercentage, CommitmentMonths: 6}, "discount_value"},
		{"missing commitment", &DiscountConfig{Type: models.DiscountTypePercentage, Value: decimal.NewFromInt(10)}, "commitment_period"},
		{"invalid commitment", &DiscountConfig{Type: models.DiscountTypePercentage, Value: decimal.NewFromInt(10), CommitmentMonths: 4}, "commitment_period"},
		{"percentage at 100", &DiscountConfig{Type: models.DiscountTypePercentage, Value: decimal.NewFromInt(100), CommitmentMonths: 6}, "discount_value"},
		{"amount above monthly", &DiscountConfig{Type: models.DiscountTypeAmount, Value: decimal.NewFromInt(600), CommitmentMonths: 6}, "discount_value"},
		{"unknown type", &DiscountConfig{Type: "bogus", Value: decimal.NewFromInt(10), CommitmentMonths: 6}, "discount_type"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := GenerateSubscription(date(2026, 1, 1), decimal.Zero, decimal.Zero, monthly, tc.discount)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestGenerateSubscriptionValidation(t *testing.T) {
	_, err := GenerateSubscription(date(2026, 1, 1), decimal.Zero, decimal.Zero, decimal.Zero, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "monthly_amount", verr.Field)

	_, err = GenerateSubscription(date(2026, 1, 1), decimal.NewFromInt(-1), decimal.Zero, decimal.NewFromInt(500), nil)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "course_fee", verr.Field)
}
