package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aims-group3/aims-payment/models"
	"github.com/aims-group3/aims-payment/utils"
)

var ErrOrderNotFound = errors.New("order not found")
var ErrPaymentNotFound = errors.New("payment not found")

// PaymentService handles the payment lifecycle: create via a provider
// strategy, confirm, cancel, and expire stale pending payments.
type PaymentService struct {
	db         *gorm.DB
	strategies *StrategyRegistry
}

func NewPaymentService(db *gorm.DB, strategies *StrategyRegistry) *PaymentService {
	return &PaymentService{
		db:         db,
		strategies: strategies,
	}
}

// CreatePayment validates the order, calls the provider strategy and
// persists exactly one payment record for the request.
func (s *PaymentService) CreatePayment(req *PaymentRequest) (*PaymentResponse, error) {
	var order models.Order
	if err := s.db.First(&order, req.OrderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, req.OrderID)
		}
		return nil, fmt.Errorf("failed to load order %d: %w", req.OrderID, err)
	}

	strategy, err := s.strategies.Get(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	resp, err := strategy.CreatePayment(req)
	if err != nil {
		return nil, err
	}

	payment := models.Payment{
		PaymentCode:   generatePaymentCode(req.PaymentMethod),
		OrderID:       order.ID,
		Amount:        req.Amount,
		Description:   req.Description,
		Status:        resp.Status,
		PaymentMethod: strings.ToUpper(req.PaymentMethod),
		QRCodeURL:     resp.QRCodeURL,
		CreatedAt:     time.Now(),
		ExpiresAt:     resp.ExpiresAt,
	}
	if resp.TransactionID != "" {
		txnID := resp.TransactionID
		payment.TransactionID = &txnID
	}
	if resp.Status == models.PaymentStatusCompleted {
		now := time.Now()
		payment.PaidAt = &now
	}

	if err := s.db.Create(&payment).Error; err != nil {
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	resp.PaymentID = payment.ID
	resp.PaymentCode = payment.PaymentCode
	return resp, nil
}

// ConfirmPayment finishes a payment after provider-side approval (PayPal
// execute). The status transition is guarded so a confirmed payment is
// completed at most once.
func (s *PaymentService) ConfirmPayment(transactionID, payerID string) (*PaymentResponse, error) {
	payment, err := s.findByTransactionID(transactionID)
	if err != nil {
		return nil, err
	}

	strategy, err := s.strategies.Get(payment.PaymentMethod)
	if err != nil {
		return nil, err
	}

	resp, err := strategy.ConfirmPayment(transactionID, payerID)
	if err != nil {
		return nil, err
	}

	if resp.Status == models.PaymentStatusCompleted {
		now := time.Now()
		res := s.db.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentStatusPending).
			Updates(map[string]interface{}{
				"status":  models.PaymentStatusCompleted,
				"paid_at": now,
			})
		if res.Error != nil {
			return nil, fmt.Errorf("failed to update payment %d: %w", payment.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			utils.InfoLogger.Printf("Payment %d already left PENDING, confirm is a no-op", payment.ID)
		}
	} else {
		utils.InfoLogger.Printf("Payment %d confirm returned status %s, leaving stored status unchanged",
			payment.ID, resp.Status)
	}

	resp.PaymentID = payment.ID
	resp.PaymentCode = payment.PaymentCode
	return resp, nil
}

// CancelPayment cancels a pending payment.
func (s *PaymentService) CancelPayment(transactionID string) (*PaymentResponse, error) {
	payment, err := s.findByTransactionID(transactionID)
	if err != nil {
		return nil, err
	}

	strategy, err := s.strategies.Get(payment.PaymentMethod)
	if err != nil {
		return nil, err
	}

	resp, err := strategy.CancelPayment(transactionID)
	if err != nil {
		return nil, err
	}

	res := s.db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.PaymentStatusPending).
		Update("status", models.PaymentStatusCancelled)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to cancel payment %d: %w", payment.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		utils.InfoLogger.Printf("Payment %d is not PENDING, cancel is a no-op", payment.ID)
	}

	resp.PaymentID = payment.ID
	resp.PaymentCode = payment.PaymentCode
	return resp, nil
}

// ExpireStalePayments cancels pending payments whose QR codes have expired.
// Returns the number of payments cancelled.
func (s *PaymentService) ExpireStalePayments() (int64, error) {
	res := s.db.Model(&models.Payment{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?",
			models.PaymentStatusPending, time.Now()).
		Update("status", models.PaymentStatusCancelled)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to expire stale payments: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		utils.InfoLogger.Printf("Expired %d stale pending payment(s)", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// StartExpiryChecker runs ExpireStalePayments on a fixed interval.
func (s *PaymentService) StartExpiryChecker(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			if _, err := s.ExpireStalePayments(); err != nil {
				utils.ErrorLogger.Printf("Error expiring stale payments: %v", err)
			}
		}
	}()
	utils.InfoLogger.Println("Payment expiry checker started")
}

func (s *PaymentService) findByTransactionID(transactionID string) (*models.Payment, error) {
	payment, found, err := findByTransactionID(s.db, transactionID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, transactionID)
	}
	return payment, nil
}

// generatePaymentCode builds a unique human-readable code such as
// "VIETQR-1A2B3C4D".
func generatePaymentCode(paymentMethod string) string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return strings.ToUpper(paymentMethod) + "-" + raw[:8]
}
