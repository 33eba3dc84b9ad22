package handlers

import (
	"io"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"academy_billing_app/internal/billing"
	"academy_billing_app/internal/middleware"
	"academy_billing_app/internal/models"
)

// CreatePlanRequest is the payload for creating a payment plan. Dates use
// the YYYY-MM-DD form the academy frontend sends.
type CreatePlanRequest struct {
	AccountID string `json:"account_id"`
	CourseID  string `json:"course_id"`
	CohortID  string `json:"cohort_id"`

	PlanType models.PlanType `json:"plan_type"`

	TotalAmount      decimal.Decimal `json:"total_amount"`
	StartDate        string          `json:"start_date"`
	EndDate          string          `json:"end_date"`
	InstallmentCount int             `json:"installment_count"`

	CourseFee       decimal.Decimal         `json:"course_fee"`
	RegistrationFee decimal.Decimal         `json:"registration_fee"`
	MonthlyAmount   decimal.Decimal         `json:"monthly_amount"`
	Discount        *billing.DiscountConfig `json:"discount,omitempty"`

	ContactEmail          string `json:"contact_email"`
	ContactPhone          string `json:"contact_phone"`
	PartialPaymentAllowed bool   `json:"partial_payment_allowed"`
	DisableAutoStop       bool   `json:"disable_auto_stop"`
}

// ApplyPaymentRequest is the payload for recording a payment against a plan.
type ApplyPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	PaymentDate   string          `json:"payment_date"`
	ReceivedBy    string          `json:"received_by"`
	TransactionID string          `json:"transaction_id"`
}

// ChangeStatusRequest is the payload for a status transition.
type ChangeStatusRequest struct {
	Status models.PlanStatus `json:"status"`
	Reason string            `json:"reason"`
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

func tenantFromContext(c echo.Context) string {
	return getStringFromContext(c, middleware.ContextTenantID)
}

func actorFromContext(c echo.Context) string {
	if email := getStringFromContext(c, middleware.ContextUserEmail); email != "" {
		return email
	}
	return getStringFromContext(c, middleware.ContextUserUID)
}

func readBody(c echo.Context) ([]byte, error) {
	defer c.Request().Body.Close()
	return io.ReadAll(c.Request().Body)
}

func getStringFromContext(c echo.Context, key string) string {
	if val := c.Get(key); val != nil {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}
