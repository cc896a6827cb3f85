package models

import (
	"time"
)

// Payment status
const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusCancelled = "CANCELLED"
	PaymentStatusFailed    = "FAILED"
)

// Payment method
const (
	PaymentMethodPayPal = "PAYPAL"
	PaymentMethodVietQR = "VIETQR"
)

// Payment represents one attempt to pay for an Order. Amount is stored in
// USD; VietQR callbacks report VND and are converted before comparison.
type Payment struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	PaymentCode   string     `gorm:"uniqueIndex;size:50" json:"payment_code"`
	OrderID       uint       `gorm:"not null;index" json:"order_id"`
	Order         Order      `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	Amount        float64    `gorm:"type:decimal(10,2);not null" json:"amount"`
	Description   string     `gorm:"type:text" json:"description"`
	Status        string     `gorm:"size:20;default:PENDING;index:idx_payments_method_status" json:"status"`
	PaymentMethod string     `gorm:"size:50;index:idx_payments_method_status" json:"payment_method"`
	TransactionID *string    `gorm:"uniqueIndex;size:100" json:"transaction_id,omitempty"`
	QRCodeURL     string     `gorm:"type:text" json:"qr_code_url,omitempty"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}
