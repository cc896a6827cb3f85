package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/aims-group3/aims-payment/config"
	"github.com/aims-group3/aims-payment/models"
	"github.com/aims-group3/aims-payment/utils"
)

// PayPalStrategy drives the PayPal approve-then-execute flow.
type PayPalStrategy struct {
	paypal *PayPalService
	config *config.PayPalConfig
}

func NewPayPalStrategy(paypal *PayPalService, cfg *config.PayPalConfig) *PayPalStrategy {
	return &PayPalStrategy{paypal: paypal, config: cfg}
}

func (s *PayPalStrategy) CreatePayment(req *PaymentRequest) (*PaymentResponse, error) {
	if s.config.Mock {
		utils.InfoLogger.Println("MOCK MODE: Simulating successful PayPal payment creation")
		return &PaymentResponse{
			Status:        models.PaymentStatusCompleted,
			Amount:        req.Amount,
			Description:   req.Description,
			PaymentMethod: models.PaymentMethodPayPal,
			TransactionID: fmt.Sprintf("MOCK-PAY-%d", time.Now().UnixMilli()),
			CreatedAt:     time.Now(),
			Message:       "MOCK MODE: Payment completed successfully (no PayPal redirect needed)",
		}, nil
	}

	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = s.config.ReturnURL
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = s.config.CancelURL
	}

	payment, err := s.paypal.CreatePayment(req.Amount, "USD", req.Description, returnURL, cancelURL)
	if err != nil {
		utils.ErrorLogger.Printf("Error creating PayPal payment: %v", err)
		return &PaymentResponse{
			Status:  models.PaymentStatusFailed,
			Message: "Failed to create PayPal payment: " + err.Error(),
		}, nil
	}

	return &PaymentResponse{
		Status:        models.PaymentStatusPending,
		Amount:        req.Amount,
		Description:   req.Description,
		PaymentMethod: models.PaymentMethodPayPal,
		ApprovalURL:   payment.ApprovalURL(),
		TransactionID: payment.ID,
		CreatedAt:     time.Now(),
		Message:       "Payment created successfully. Please approve the payment.",
	}, nil
}

func (s *PayPalStrategy) ConfirmPayment(paymentID, payerID string) (*PaymentResponse, error) {
	if s.config.Mock {
		utils.InfoLogger.Println("MOCK MODE: Simulating successful payment confirmation")
		return &PaymentResponse{
			Status:        models.PaymentStatusCompleted,
			TransactionID: paymentID,
			Message:       "MOCK MODE: Payment confirmed successfully",
		}, nil
	}

	payment, err := s.paypal.ExecutePayment(paymentID, payerID)
	if err != nil {
		utils.ErrorLogger.Printf("Error confirming PayPal payment: %v", err)
		return &PaymentResponse{
			Status:  models.PaymentStatusFailed,
			Message: "Failed to confirm PayPal payment: " + err.Error(),
		}, nil
	}

	status := models.PaymentStatusPending
	switch strings.ToLower(payment.State) {
	case "approved":
		status = models.PaymentStatusCompleted
	case "failed":
		status = models.PaymentStatusFailed
	}

	return &PaymentResponse{
		Status:        status,
		TransactionID: payment.ID,
		Message:       "Payment " + strings.ToLower(status),
	}, nil
}

func (s *PayPalStrategy) CancelPayment(paymentID string) (*PaymentResponse, error) {
	return &PaymentResponse{
		Status:        models.PaymentStatusCancelled,
		TransactionID: paymentID,
		Message:       "Payment cancelled by user",
	}, nil
}

func (s *PayPalStrategy) PaymentMethod() string {
	return models.PaymentMethodPayPal
}
