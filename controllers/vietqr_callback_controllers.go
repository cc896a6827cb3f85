package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aims-group3/aims-payment/services"
	"github.com/aims-group3/aims-payment/utils"
)

// Acknowledgment codes returned to VietQR. The sender retries on 99 but not
// on 00/01, so every request must be answered with one of these.
const (
	CallbackCodeProcessed     = "00"
	CallbackCodeNotFound      = "01"
	CallbackCodeInternalError = "99"
)

// VietQRCallbackResponse acknowledges a transaction-sync delivery.
type VietQRCallbackResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type VietQRCallbackController struct {
	Callbacks *services.VietQRCallbackService
}

func NewVietQRCallbackController(callbacks *services.VietQRCallbackService) *VietQRCallbackController {
	return &VietQRCallbackController{Callbacks: callbacks}
}

// HandleTransactionSync receives bank-transfer notifications from VietQR and
// reconciles them against pending payments. It always answers with an
// acknowledgment body, also on internal errors.
func (vc *VietQRCallbackController) HandleTransactionSync(c *gin.Context) {
	var req services.VietQRCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorLogger.Printf("Invalid VietQR callback body: %v", err)
		c.JSON(http.StatusBadRequest, VietQRCallbackResponse{
			Error:   true,
			Code:    CallbackCodeInternalError,
			Message: "Invalid request body",
		})
		return
	}

	outcome, err := vc.Callbacks.ProcessCallback(&req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, VietQRCallbackResponse{
			Error:   true,
			Code:    CallbackCodeInternalError,
			Message: "Internal server error: " + err.Error(),
		})
		return
	}

	switch {
	case outcome.Success():
		c.JSON(http.StatusOK, VietQRCallbackResponse{
			Error:   false,
			Code:    CallbackCodeProcessed,
			Message: "Transaction processed successfully",
		})
	case outcome == services.CallbackInvalid:
		c.JSON(http.StatusBadRequest, VietQRCallbackResponse{
			Error:   true,
			Code:    CallbackCodeInternalError,
			Message: "Request body is invalid",
		})
	default:
		// Not found / validation failed: still HTTP 200, distinct code.
		c.JSON(http.StatusOK, VietQRCallbackResponse{
			Error:   true,
			Code:    CallbackCodeNotFound,
			Message: "Transaction not found or validation failed",
		})
	}
}
