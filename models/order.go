package models

import (
	"time"
)

// Order is created by the ordering subsystem; this service only reads it
// and attaches payments to it.
type Order struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CustomerName string    `gorm:"not null" json:"customer_name"`
	AddressLine  string    `json:"address_line"`
	Price        float64   `gorm:"type:decimal(10,2)" json:"price"`
	ShippingFee  float64   `gorm:"type:decimal(10,2);default:0" json:"shipping_fee"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	Payments     []Payment `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"payments,omitempty"`
}
