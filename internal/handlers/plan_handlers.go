package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"academy_billing_app/internal/billing"
	"academy_billing_app/internal/models"
)

// PlanHandler exposes the billing façade over JSON.
type PlanHandler struct {
	svc *billing.Service
}

func NewPlanHandler(svc *billing.Service) *PlanHandler {
	return &PlanHandler{svc: svc}
}

// CreatePlan handles POST /api/plans
func (h *PlanHandler) CreatePlan(c echo.Context) error {
	var req CreatePlanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid start_date")
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid end_date")
	}

	plan, err := h.svc.CreatePlan(c.Request().Context(), billing.CreatePlanInput{
		TenantID:              tenantFromContext(c),
		AccountID:             req.AccountID,
		CourseID:              req.CourseID,
		CohortID:              req.CohortID,
		PlanType:              req.PlanType,
		TotalAmount:           req.TotalAmount,
		StartDate:             startDate,
		EndDate:               endDate,
		InstallmentCount:      req.InstallmentCount,
		CourseFee:             req.CourseFee,
		RegistrationFee:       req.RegistrationFee,
		MonthlyAmount:         req.MonthlyAmount,
		Discount:              req.Discount,
		ContactEmail:          req.ContactEmail,
		ContactPhone:          req.ContactPhone,
		PartialPaymentAllowed: req.PartialPaymentAllowed,
		DisableAutoStop:       req.DisableAutoStop,
		CreatedBy:             actorFromContext(c),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, plan)
}

// GetPlan handles GET /api/plans/:uuid
func (h *PlanHandler) GetPlan(c echo.Context) error {
	plan, err := h.svc.GetPlan(c.Request().Context(), tenantFromContext(c), c.Param("uuid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, plan)
}

// ApplyPayment handles POST /api/plans/:uuid/payments
func (h *PlanHandler) ApplyPayment(c echo.Context) error {
	var req ApplyPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}

	paymentDate, err := parseDate(req.PaymentDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payment_date")
	}

	receivedBy := req.ReceivedBy
	if receivedBy == "" {
		receivedBy = actorFromContext(c)
	}

	plan, err := h.svc.ApplyPayment(c.Request().Context(), tenantFromContext(c), c.Param("uuid"), billing.PaymentInput{
		Amount:        req.Amount,
		Method:        req.Method,
		PaymentDate:   paymentDate,
		ReceivedBy:    receivedBy,
		Gateway:       models.PaymentGatewayManual,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, plan)
}

// ChangeStatus handles POST /api/plans/:uuid/status
func (h *PlanHandler) ChangeStatus(c echo.Context) error {
	var req ChangeStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}

	plan, err := h.svc.ChangeStatus(c.Request().Context(), tenantFromContext(c), c.Param("uuid"),
		req.Status, req.Reason, actorFromContext(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, plan)
}
