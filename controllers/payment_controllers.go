package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aims-group3/aims-payment/models"
	"github.com/aims-group3/aims-payment/services"
	"github.com/aims-group3/aims-payment/utils"
)

type PaymentController struct {
	DB       *gorm.DB
	Payments *services.PaymentService
}

func NewPaymentController(db *gorm.DB, payments *services.PaymentService) *PaymentController {
	return &PaymentController{DB: db, Payments: payments}
}

// CreatePayment creates one payment for an order via the requested provider.
func (pc *PaymentController) CreatePayment(c *gin.Context) {
	var req services.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	resp, err := pc.Payments.CreatePayment(&req)
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
		utils.ErrorLogger.Printf("Error creating payment: %v", err)
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Payment initiated", resp)
}

// ConfirmPayment confirms a payment manually (testing or webhook use).
func (pc *PaymentController) ConfirmPayment(c *gin.Context) {
	paymentID := c.Query("paymentId")
	payerID := c.Query("payerId")
	if paymentID == "" {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("paymentId is required"))
		return
	}

	resp, err := pc.Payments.ConfirmPayment(paymentID, payerID)
	if err != nil {
		if errors.Is(err, services.ErrPaymentNotFound) {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
		utils.ErrorLogger.Printf("Error confirming payment: %v", err)
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment confirmed", resp)
}

// PayPalSuccess is the redirect target after the payer approves on PayPal.
func (pc *PaymentController) PayPalSuccess(c *gin.Context) {
	paymentID := c.Query("paymentId")
	payerID := c.Query("PayerID")
	if paymentID == "" || payerID == "" {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("paymentId and PayerID are required"))
		return
	}

	resp, err := pc.Payments.ConfirmPayment(paymentID, payerID)
	if err != nil {
		utils.ErrorLogger.Printf("Error confirming PayPal payment: %v", err)
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment completed successfully!", resp)
}

// PayPalCancel is the redirect target when the payer cancels on PayPal.
func (pc *PaymentController) PayPalCancel(c *gin.Context) {
	paymentID := c.Query("token")
	if paymentID == "" {
		utils.RespondJSON(c, http.StatusOK, "Payment cancelled by user", nil)
		return
	}

	resp, err := pc.Payments.CancelPayment(paymentID)
	if err != nil {
		utils.ErrorLogger.Printf("Error cancelling PayPal payment: %v", err)
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment cancelled", resp)
}

// GetAllPayments lists payments with their orders.
func (pc *PaymentController) GetAllPayments(c *gin.Context) {
	var payments []models.Payment
	if err := pc.DB.Preload("Order").Find(&payments).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All payments", payments)
}

// GetPaymentByID returns one payment.
func (pc *PaymentController) GetPaymentByID(c *gin.Context) {
	idStr := c.Param("payment_id")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid payment id: %s", idStr))
		return
	}

	var payment models.Payment
	if err := pc.DB.Preload("Order").First(&payment, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment detail", payment)
}
