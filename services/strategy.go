package services

import (
	"fmt"
	"strings"
	"time"
)

// PaymentRequest carries a create-payment call into a provider strategy.
type PaymentRequest struct {
	OrderID       uint    `json:"order_id" binding:"required"`
	Amount        float64 `json:"amount" binding:"required,gt=0"`
	Description   string  `json:"description"`
	PaymentMethod string  `json:"payment_method" binding:"required"`
	ReturnURL     string  `json:"return_url"`
	CancelURL     string  `json:"cancel_url"`
}

// PaymentResponse is what a strategy produces; the payment service fills in
// the persisted id and code afterwards.
type PaymentResponse struct {
	PaymentID     uint       `json:"payment_id,omitempty"`
	PaymentCode   string     `json:"payment_code,omitempty"`
	Status        string     `json:"status"`
	Amount        float64    `json:"amount,omitempty"`
	Description   string     `json:"description,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	ApprovalURL   string     `json:"approval_url,omitempty"`
	TransactionID string     `json:"transaction_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	QRCodeURL     string     `json:"qr_code_url,omitempty"`
	QRCode        string     `json:"qr_code,omitempty"`
	BankName      string     `json:"bank_name,omitempty"`
	BankAccount   string     `json:"bank_account,omitempty"`
	Message       string     `json:"message,omitempty"`
}

// PaymentStrategy is implemented once per provider. The set is closed:
// PayPal and VietQR.
type PaymentStrategy interface {
	CreatePayment(req *PaymentRequest) (*PaymentResponse, error)
	ConfirmPayment(paymentID, payerID string) (*PaymentResponse, error)
	CancelPayment(paymentID string) (*PaymentResponse, error)
	PaymentMethod() string
}

// StrategyRegistry dispatches to a strategy by upper-cased method name.
type StrategyRegistry struct {
	strategies map[string]PaymentStrategy
}

func NewStrategyRegistry(strategies ...PaymentStrategy) *StrategyRegistry {
	m := make(map[string]PaymentStrategy, len(strategies))
	for _, s := range strategies {
		m[strings.ToUpper(s.PaymentMethod())] = s
	}
	return &StrategyRegistry{strategies: m}
}

func (r *StrategyRegistry) Get(paymentMethod string) (PaymentStrategy, error) {
	strategy, ok := r.strategies[strings.ToUpper(paymentMethod)]
	if !ok {
		return nil, fmt.Errorf("payment method not supported: %s", paymentMethod)
	}
	return strategy, nil
}
