package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"academy_billing_app/internal/billing"
	"academy_billing_app/internal/models"
	"academy_billing_app/internal/services"
)

// GatewayHandler bridges plans to the Midtrans checkout flow: creating Snap
// sessions for the next outstanding amount and applying settlements that
// arrive through the notification callback.
type GatewayHandler struct {
	db       *gorm.DB
	svc      *billing.Service
	payments *services.PaymentService
	midtrans *services.MidtransService
}

func NewGatewayHandler(db *gorm.DB, svc *billing.Service, payments *services.PaymentService, midtrans *services.MidtransService) *GatewayHandler {
	return &GatewayHandler{db: db, svc: svc, payments: payments, midtrans: midtrans}
}

// CheckoutRequest is the payload for starting a gateway checkout.
type CheckoutRequest struct {
	PayerName  string `json:"payer_name"`
	PayerEmail string `json:"payer_email"`
	ForceNew   bool   `json:"force_new"`
}

// InitiateCheckout handles POST /api/plans/:uuid/checkout
func (h *GatewayHandler) InitiateCheckout(c echo.Context) error {
	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}

	plan, err := h.svc.GetPlan(c.Request().Context(), tenantFromContext(c), c.Param("uuid"))
	if err != nil {
		return err
	}
	if plan.Status != models.PlanStatusActive {
		return echo.NewHTTPError(http.StatusBadRequest, "plan is not active")
	}

	var amount decimal.Decimal
	var installmentNumber *int
	if plan.Subscription != nil {
		amount = plan.Subscription.MonthlyCharge()
	} else if next := plan.NextUnpaidInstallment(); next != nil {
		amount = next.Amount
		n := next.InstallmentNumber
		installmentNumber = &n
	} else {
		return echo.NewHTTPError(http.StatusBadRequest, "nothing outstanding on this plan")
	}

	result, err := h.payments.InitiateCheckout(plan, amount, installmentNumber, req.PayerName, req.PayerEmail, req.ForceNew)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"token":        result.Token,
		"redirect_url": result.RedirectURL,
		"is_existing":  result.IsExisting,
		"amount":       amount,
	})
}

// midtransNotification is the subset of the gateway's notification payload
// the callback needs. The raw body is persisted as-is regardless.
type midtransNotification struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	PaymentType       string `json:"payment_type"`
	TransactionID     string `json:"transaction_id"`
	TransactionTime   string `json:"transaction_time"`
}

// HandleMidtransCallback handles POST /api/payments/midtrans/callback. The
// endpoint is public; authenticity rests on the signature check. It must
// respond 200 even for notifications it ignores, otherwise Midtrans retries.
func (h *GatewayHandler) HandleMidtransCallback(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	var notif midtransNotification
	if err := json.Unmarshal(body, &notif); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}

	history := models.PaymentCallbackHistory{
		PaymentGateway: models.PaymentGatewayMidtrans,
		OrderID:        notif.OrderID,
		Metadata:       body,
	}
	if err := h.db.Create(&history).Error; err != nil {
		c.Logger().Errorf("failed to store callback history: %v", err)
	}

	if !h.midtrans.VerifySignature(notif.OrderID, notif.StatusCode, notif.GrossAmount, notif.SignatureKey) {
		return echo.NewHTTPError(http.StatusForbidden, "invalid signature")
	}

	session, err := h.payments.SessionByOrderID(notif.OrderID)
	if err != nil {
		return err
	}
	if session == nil {
		c.Logger().Warnf("callback for unknown order %s", notif.OrderID)
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}

	switch notif.TransactionStatus {
	case "settlement", "capture":
		if notif.TransactionStatus == "capture" && notif.FraudStatus != "accept" {
			return c.JSON(http.StatusOK, map[string]string{"status": "pending fraud review"})
		}
		if err := h.applySettlement(c, session, notif); err != nil {
			return err
		}
		h.payments.Deactivate(session)
		return c.JSON(http.StatusOK, map[string]string{"status": "applied"})

	case "deny", "expire", "cancel", "failure":
		h.payments.Deactivate(session)
		return c.JSON(http.StatusOK, map[string]string{"status": "closed"})

	default:
		return c.JSON(http.StatusOK, map[string]string{"status": "pending"})
	}
}

func (h *GatewayHandler) applySettlement(c echo.Context, session *models.PaymentSession, notif midtransNotification) error {
	plan, err := h.svc.PlanByID(c.Request().Context(), session.PlanID)
	if err != nil {
		return err
	}

	amount, err := decimal.NewFromString(notif.GrossAmount)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid gross_amount")
	}

	_, err = h.svc.ApplyPayment(c.Request().Context(), plan.TenantID, plan.UUID, billing.PaymentInput{
		Amount:        amount,
		Method:        notif.PaymentType,
		ReceivedBy:    "midtrans",
		Gateway:       models.PaymentGatewayMidtrans,
		TransactionID: notif.TransactionID,
	})
	return err
}
