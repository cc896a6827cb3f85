package services

import (
	"fmt"
	"time"

	"github.com/aims-group3/aims-payment/config"
	"github.com/aims-group3/aims-payment/models"
	"github.com/aims-group3/aims-payment/utils"
)

// qrValidity is how long a generated QR code stays payable.
const qrValidity = 15 * time.Minute

// VietQRStrategy creates QR-code payments. Completion happens out of band,
// through the bank callback handled by VietQRCallbackService.
type VietQRStrategy struct {
	vietqr *VietQRService
	config *config.VietQRConfig
}

func NewVietQRStrategy(vietqr *VietQRService, cfg *config.VietQRConfig) *VietQRStrategy {
	return &VietQRStrategy{vietqr: vietqr, config: cfg}
}

func (s *VietQRStrategy) CreatePayment(req *PaymentRequest) (*PaymentResponse, error) {
	utils.InfoLogger.Printf("Creating VietQR payment for order: %d, amount: %.2f", req.OrderID, req.Amount)

	// The VietQR API wants an integer VND amount; payments are stored in USD.
	amountVnd := int64(req.Amount * s.config.UsdToVndRate)
	utils.InfoLogger.Printf("Converting amount from %.2f USD to %s", req.Amount, utils.FormatVND(amountVnd))

	qrResp, err := s.vietqr.GenerateQRCode(amountVnd, req.Description, fmt.Sprintf("%d", req.OrderID))
	if err != nil {
		utils.ErrorLogger.Printf("Error creating VietQR payment: %v", err)
		return &PaymentResponse{
			Status:  models.PaymentStatusFailed,
			Message: "Failed to create VietQR payment: " + err.Error(),
		}, nil
	}

	expiresAt := time.Now().Add(qrValidity)
	resp := &PaymentResponse{
		Status:        models.PaymentStatusPending,
		Amount:        req.Amount,
		Description:   req.Description,
		PaymentMethod: models.PaymentMethodVietQR,
		QRCodeURL:     qrResp.QRLink,
		QRCode:        qrResp.QRCode,
		TransactionID: qrResp.TransactionRefID,
		CreatedAt:     time.Now(),
		ExpiresAt:     &expiresAt,
		BankName:      qrResp.BankName,
		BankAccount:   qrResp.BankAccount,
	}
	resp.Message = fmt.Sprintf("QR code generated. Bank: %s, Account: %s. Please scan QR code to pay.",
		valueOrNA(qrResp.BankName), valueOrNA(qrResp.BankAccount))

	return resp, nil
}

// ConfirmPayment has no provider-side call: a VietQR payment is confirmed by
// the transaction-sync callback, not by the client.
func (s *VietQRStrategy) ConfirmPayment(paymentID, payerID string) (*PaymentResponse, error) {
	utils.InfoLogger.Printf("VietQR payment confirmation requested for transaction: %s", paymentID)
	return &PaymentResponse{
		Status:        models.PaymentStatusPending,
		TransactionID: paymentID,
		Message:       "VietQR payment is confirmed via bank callback; check payment status",
	}, nil
}

func (s *VietQRStrategy) CancelPayment(paymentID string) (*PaymentResponse, error) {
	utils.InfoLogger.Printf("VietQR payment cancellation requested for transaction: %s", paymentID)
	return &PaymentResponse{
		Status:        models.PaymentStatusCancelled,
		TransactionID: paymentID,
		Message:       "VietQR payment cancelled - QR code will expire",
	}, nil
}

func (s *VietQRStrategy) PaymentMethod() string {
	return models.PaymentMethodVietQR
}

func valueOrNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
