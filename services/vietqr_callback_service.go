package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/aims-group3/aims-payment/config"
	"github.com/aims-group3/aims-payment/models"
	"github.com/aims-group3/aims-payment/utils"
)

// VietQRCallbackRequest is the transaction-sync payload sent by VietQR when a
// bank transfer hits the merchant account. Field names follow the VietQR
// transaction-sync API.
type VietQRCallbackRequest struct {
	BankAccount     string `json:"bankaccount"`
	Amount          int64  `json:"amount"`
	TransType       string `json:"transType"` // "C" credit, "D" debit
	Content         string `json:"content"`
	TransactionID   string `json:"transactionid"`
	TransactionTime int64  `json:"transactiontime"`
	ReferenceNumber string `json:"referencenumber"`
	OrderID         string `json:"orderId"`
	BankCode        string `json:"bankCode"`
}

// CallbackOutcome classifies the result of processing one callback.
type CallbackOutcome int

const (
	// CallbackCompleted means a pending payment was matched and completed.
	CallbackCompleted CallbackOutcome = iota
	// CallbackAlreadyProcessed means the matched payment was no longer
	// PENDING; re-delivery is acknowledged as success so the bank stops
	// retrying.
	CallbackAlreadyProcessed
	// CallbackNotFound means no payment matched or a hard validation check
	// failed; nothing was changed.
	CallbackNotFound
	// CallbackInvalid means the request itself was unusable.
	CallbackInvalid
)

// Success reports whether the outcome should be acknowledged as processed.
func (o CallbackOutcome) Success() bool {
	return o == CallbackCompleted || o == CallbackAlreadyProcessed
}

const creditTransType = "C"

// VietQRCallbackService reconciles incoming bank-transfer callbacks against
// pending VietQR payments.
type VietQRCallbackService struct {
	db   *gorm.DB
	rate float64
}

func NewVietQRCallbackService(db *gorm.DB, cfg *config.VietQRConfig) *VietQRCallbackService {
	rate := config.DefaultUsdToVndRate
	if cfg != nil && cfg.UsdToVndRate > 0 {
		rate = cfg.UsdToVndRate
	}
	return &VietQRCallbackService{db: db, rate: rate}
}

// ProcessCallback runs match -> validate -> transition for one callback as a
// single transaction. It is safe to re-invoke with the same payload: a
// payment is completed at most once, and re-delivery reports success.
func (s *VietQRCallbackService) ProcessCallback(req *VietQRCallbackRequest) (CallbackOutcome, error) {
	if req == nil {
		utils.ErrorLogger.Println("VietQR callback request is nil")
		return CallbackInvalid, nil
	}

	utils.InfoLogger.Printf(
		"Received VietQR callback: bankAccount=%s, amount=%s, content=%s, transType=%s, bankCode=%s, transactionId=%s, referenceNumber=%s, orderId=%s",
		orNull(req.BankAccount), utils.FormatVND(req.Amount), orNull(req.Content),
		orNull(req.TransType), orNull(req.BankCode), orNull(req.TransactionID),
		orNull(req.ReferenceNumber), orNull(req.OrderID))

	outcome := CallbackNotFound
	err := s.db.Transaction(func(tx *gorm.DB) error {
		payment, found, err := s.findPaymentByCallback(tx, req)
		if err != nil {
			return err
		}
		if !found {
			utils.InfoLogger.Printf("Payment not found for callback: bankAccount=%s, amount=%d, content=%s, bankCode=%s",
				orNull(req.BankAccount), req.Amount, orNull(req.Content), orNull(req.BankCode))
			s.logPendingPayments(tx)
			outcome = CallbackNotFound
			return nil
		}

		if !s.validatePayment(req, payment) {
			utils.InfoLogger.Printf("Payment validation failed for paymentId=%d, transactionId=%s",
				payment.ID, derefOrNull(payment.TransactionID))
			outcome = CallbackNotFound
			return nil
		}

		if payment.Status != models.PaymentStatusPending {
			// Already processed; acknowledge success so the sender stops
			// retrying.
			utils.InfoLogger.Printf("Payment already processed: paymentId=%d, status=%s", payment.ID, payment.Status)
			outcome = CallbackAlreadyProcessed
			return nil
		}

		// Guarded update: only the first of two racing callbacks flips the
		// status, the loser takes the already-processed path.
		now := time.Now()
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentStatusPending).
			Updates(map[string]interface{}{
				"status":  models.PaymentStatusCompleted,
				"paid_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update payment %d: %w", payment.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			utils.InfoLogger.Printf("Payment %d was completed by a concurrent callback", payment.ID)
			outcome = CallbackAlreadyProcessed
			return nil
		}

		utils.InfoLogger.Printf("Payment updated successfully: paymentId=%d, paymentCode=%s, orderId=%d, amount=%.2f, status=COMPLETED",
			payment.ID, payment.PaymentCode, payment.OrderID, payment.Amount)
		outcome = CallbackCompleted
		return nil
	})
	if err != nil {
		utils.ErrorLogger.Printf("Error processing VietQR callback: %v", err)
		return CallbackNotFound, err
	}

	return outcome, nil
}

// findPaymentByCallback resolves the callback to at most one payment.
// Priority cascade: provider transaction id, then order-scoped search, then
// a global fuzzy match on amount and content. The first non-empty step wins.
func (s *VietQRCallbackService) findPaymentByCallback(tx *gorm.DB, req *VietQRCallbackRequest) (*models.Payment, bool, error) {
	// Provider-assigned transaction ids are authoritative when present.
	if req.TransactionID != "" {
		payment, found, err := findByTransactionID(tx, req.TransactionID)
		if err != nil {
			return nil, false, err
		}
		if found {
			utils.InfoLogger.Printf("Found payment by transactionId: %s", req.TransactionID)
			return payment, true, nil
		}
	}

	if req.ReferenceNumber != "" {
		payment, found, err := findByTransactionID(tx, req.ReferenceNumber)
		if err != nil {
			return nil, false, err
		}
		if found {
			utils.InfoLogger.Printf("Found payment by referenceNumber: %s", req.ReferenceNumber)
			return payment, true, nil
		}
	}

	// Order id narrows the search when the callback supplies one.
	if req.OrderID != "" {
		orderID, convErr := strconv.Atoi(req.OrderID)
		if convErr != nil {
			utils.InfoLogger.Printf("Invalid orderId format: %s", req.OrderID)
		} else {
			var payments []models.Payment
			err := tx.Where("order_id = ? AND payment_method = ? AND status = ?",
				orderID, models.PaymentMethodVietQR, models.PaymentStatusPending).
				Order("id ASC").
				Find(&payments).Error
			if err != nil {
				return nil, false, fmt.Errorf("order-scoped payment lookup failed: %w", err)
			}
			if len(payments) > 0 {
				utils.InfoLogger.Printf("Found %d payment(s) by orderId: %d", len(payments), orderID)
				for i := range payments {
					p := &payments[i]
					if callbackAmountMatches(req.Amount, p.Amount, s.rate) && contentOverlaps(req.Content, p.Description) {
						return p, true, nil
					}
				}
			}
		}
	}

	// Fuzzy fallback needs both amount and content.
	if req.Amount <= 0 {
		utils.InfoLogger.Println("Amount is missing in callback request")
		return nil, false, nil
	}
	if req.Content == "" {
		utils.InfoLogger.Println("Content is missing in callback request")
		return nil, false, nil
	}

	amountUsd := vndToUSD(float64(req.Amount), s.rate)
	utils.InfoLogger.Printf("Searching payments: amount=%d VND (%.2f USD), content=%s, bankAccount=%s, bankCode=%s",
		req.Amount, amountUsd, req.Content, orNull(req.BankAccount), orNull(req.BankCode))

	var candidates []models.Payment
	err := tx.Where("payment_method = ? AND status = ?",
		models.PaymentMethodVietQR, models.PaymentStatusPending).
		Order("id ASC").
		Find(&candidates).Error
	if err != nil {
		return nil, false, fmt.Errorf("pending payment scan failed: %w", err)
	}

	var survivors []*models.Payment
	for i := range candidates {
		p := &candidates[i]
		if !callbackAmountMatches(req.Amount, p.Amount, s.rate) {
			continue
		}
		if !contentOverlaps(req.Content, p.Description) {
			continue
		}
		survivors = append(survivors, p)
	}

	utils.InfoLogger.Printf("Found %d payment(s) matching amount and content", len(survivors))
	if len(survivors) == 0 {
		// Re-delivered callbacks must still be acknowledged after the
		// payment completed, so look among completed payments before
		// giving up.
		return s.findCompletedMatch(tx, req)
	}

	// Among multiple survivors, prefer one whose description carries the
	// callback's bank account.
	if req.BankAccount != "" {
		for _, p := range survivors {
			if strings.Contains(p.Description, req.BankAccount) {
				utils.InfoLogger.Printf("Found payment by bankAccount match: paymentId=%d", p.ID)
				return p, true, nil
			}
		}
	}

	utils.InfoLogger.Printf("Using first matching payment: paymentId=%d", survivors[0].ID)
	return survivors[0], true, nil
}

// findCompletedMatch runs the amount+content match against COMPLETED
// payments. A fuzzily matched payment has no transaction id to find it by, so
// a bank retry after completion would otherwise look like an unknown
// transaction and be answered with a retryable code forever.
func (s *VietQRCallbackService) findCompletedMatch(tx *gorm.DB, req *VietQRCallbackRequest) (*models.Payment, bool, error) {
	var completed []models.Payment
	err := tx.Where("payment_method = ? AND status = ?",
		models.PaymentMethodVietQR, models.PaymentStatusCompleted).
		Order("id ASC").
		Find(&completed).Error
	if err != nil {
		return nil, false, fmt.Errorf("completed payment scan failed: %w", err)
	}

	for i := range completed {
		p := &completed[i]
		if !callbackAmountMatches(req.Amount, p.Amount, s.rate) {
			continue
		}
		if !contentOverlaps(req.Content, p.Description) {
			continue
		}
		utils.InfoLogger.Printf("Callback matches already-completed payment: paymentId=%d", p.ID)
		return p, true, nil
	}

	return nil, false, nil
}

// validatePayment re-checks the matched payment against the callback. Method,
// amount and credit flag are hard failures; content overlap and bank-account
// presence are logged but do not block completion, because bank-side content
// truncation is common.
func (s *VietQRCallbackService) validatePayment(req *VietQRCallbackRequest, payment *models.Payment) bool {
	if payment == nil || req == nil {
		return false
	}

	if payment.PaymentMethod != models.PaymentMethodVietQR {
		utils.InfoLogger.Printf("Payment method mismatch: expected VIETQR, got %s", orNull(payment.PaymentMethod))
		return false
	}

	if req.Amount <= 0 || !callbackAmountMatches(req.Amount, payment.Amount, s.rate) {
		utils.InfoLogger.Printf("Amount mismatch: callback=%d VND (%.2f USD), payment=%.2f USD",
			req.Amount, vndToUSD(float64(req.Amount), s.rate), payment.Amount)
		return false
	}

	// A debit notification must never complete a payment.
	if req.TransType != creditTransType {
		utils.InfoLogger.Printf("Invalid transType: expected C, got %s", orNull(req.TransType))
		return false
	}

	if req.Content == "" || payment.Description == "" {
		utils.InfoLogger.Printf("Content or description is empty: callbackContent=%t, paymentDescription=%t",
			req.Content != "", payment.Description != "")
	} else if !contentOverlaps(req.Content, payment.Description) {
		utils.InfoLogger.Printf("Content mismatch: callback=%s, extracted=%s, payment=%s",
			req.Content, extractContent(req.Content), payment.Description)
	}

	if req.BankAccount != "" && payment.Description != "" &&
		!strings.Contains(payment.Description, req.BankAccount) {
		utils.InfoLogger.Printf("Bank account mismatch: callback=%s, payment description=%s",
			req.BankAccount, payment.Description)
	}

	return true
}

// logPendingPayments dumps the pending VietQR payments so unmatched callbacks
// can be diagnosed from logs.
func (s *VietQRCallbackService) logPendingPayments(tx *gorm.DB) {
	var pending []models.Payment
	if err := tx.Where("payment_method = ? AND status = ?",
		models.PaymentMethodVietQR, models.PaymentStatusPending).
		Order("id ASC").
		Find(&pending).Error; err != nil {
		utils.ErrorLogger.Printf("Failed to list pending VietQR payments: %v", err)
		return
	}

	utils.InfoLogger.Printf("Available PENDING VIETQR payments in DB: %d", len(pending))
	for _, p := range pending {
		utils.InfoLogger.Printf("  - Payment ID: %d, Amount: %.2f USD, Description: %s, TransactionId: %s",
			p.ID, p.Amount, p.Description, derefOrNull(p.TransactionID))
	}
}

func findByTransactionID(tx *gorm.DB, transactionID string) (*models.Payment, bool, error) {
	var payment models.Payment
	err := tx.Where("transaction_id = ?", transactionID).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("payment lookup by transaction id failed: %w", err)
	}
	return &payment, true, nil
}

func orNull(s string) string {
	if s == "" {
		return "NULL"
	}
	return s
}

func derefOrNull(s *string) string {
	if s == nil {
		return "NULL"
	}
	return *s
}
