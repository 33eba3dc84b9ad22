package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"academy_billing_app/internal/models"
)

// PaymentService manages gateway checkout sessions for plans: one active
// Snap transaction per plan at a time, resumed while still pending instead
// of duplicated.
type PaymentService struct {
	db             *gorm.DB
	midtransClient *MidtransService
}

func NewPaymentService(db *gorm.DB, midtransClient *MidtransService) *PaymentService {
	return &PaymentService{
		db:             db,
		midtransClient: midtransClient,
	}
}

// CheckActiveSession returns the newest active session for the plan, or nil.
func (s *PaymentService) CheckActiveSession(planID uint) (*models.PaymentSession, error) {
	var existing models.PaymentSession
	err := s.db.Where("plan_id = ? AND is_active = ?", planID, true).
		Order("created_at desc").First(&existing).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &existing, nil
}

// CheckoutResult holds the result of an initiation attempt
type CheckoutResult struct {
	Token       string
	RedirectURL string
	IsExisting  bool
}

// InitiateCheckout starts or resumes a gateway checkout for the plan's next
// outstanding amount. payerName/payerEmail come from the directory; the
// installment number is nil for subscription charges.
func (s *PaymentService) InitiateCheckout(plan *models.PaymentPlan, amount decimal.Decimal, installmentNumber *int, payerName, payerEmail string, forceNew bool) (*CheckoutResult, error) {
	existing, err := s.CheckActiveSession(plan.ID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		statusResp, err := s.midtransClient.CheckTransaction(existing.OrderID)
		if err == nil {
			switch statusResp.TransactionStatus {
			case "settlement", "capture":
				return nil, fmt.Errorf("payment already made")
			case "deny", "expire", "cancel", "failure":
				s.deactivate(existing)
			default:
				// Still pending at the gateway.
				if forceNew {
					s.midtransClient.CancelTransaction(existing.OrderID)
					s.deactivate(existing)
				} else {
					var midtransResp snap.Response
					if err := json.Unmarshal(existing.ResponseMetadata, &midtransResp); err == nil {
						return &CheckoutResult{
							Token:       midtransResp.Token,
							RedirectURL: midtransResp.RedirectURL,
							IsExisting:  true,
						}, nil
					}
					s.deactivate(existing)
				}
			}
		} else {
			// Status check failed; treat the local session as broken.
			s.deactivate(existing)
		}
	}

	orderID := fmt.Sprintf("plan-%d-%d", plan.ID, time.Now().Unix())
	grossAmt := amount.IntPart()

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: grossAmt,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: payerName,
			Email: payerEmail,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    fmt.Sprintf("course-%s", plan.CourseID),
				Name:  fmt.Sprintf("Course fee payment (%s)", plan.PlanType),
				Price: grossAmt,
				Qty:   1,
			},
		},
	}

	resp, err := s.midtransClient.CreateTransaction(orderID, grossAmt, req)
	if err != nil {
		return nil, err
	}

	reqBytes, _ := json.Marshal(req)
	respBytes, _ := json.Marshal(resp)

	session := models.PaymentSession{
		PlanID:            plan.ID,
		TenantID:          plan.TenantID,
		InstallmentNumber: installmentNumber,
		PaymentGateway:    models.PaymentGatewayMidtrans,
		OrderID:           orderID,
		IsActive:          true,
		RequestMetadata:   reqBytes,
		ResponseMetadata:  respBytes,
	}
	s.db.Create(&session)

	return &CheckoutResult{
		Token:       resp.Token,
		RedirectURL: resp.RedirectURL,
		IsExisting:  false,
	}, nil
}

// SessionByOrderID resolves a gateway notification back to its session.
func (s *PaymentService) SessionByOrderID(orderID string) (*models.PaymentSession, error) {
	var session models.PaymentSession
	err := s.db.Where("order_id = ?", orderID).First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// Deactivate marks the session inactive once the gateway reached a final state.
func (s *PaymentService) Deactivate(session *models.PaymentSession) {
	s.deactivate(session)
}

func (s *PaymentService) deactivate(session *models.PaymentSession) {
	session.IsActive = false
	s.db.Save(session)
}
