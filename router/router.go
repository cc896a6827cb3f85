package router

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aims-group3/aims-payment/controllers"
	"github.com/aims-group3/aims-payment/middlewares"
	"github.com/aims-group3/aims-payment/services"
)

func SetupRouter(db *gorm.DB, payments *services.PaymentService, callbacks *services.VietQRCallbackService) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.CORSMiddlewares())

	paymentCtrl := controllers.NewPaymentController(db, payments)
	callbackCtrl := controllers.NewVietQRCallbackController(callbacks)

	api := r.Group("/api")
	{
		payment := api.Group("/payment")
		{
			payment.POST("/create", paymentCtrl.CreatePayment)
			payment.POST("/confirm", paymentCtrl.ConfirmPayment)
			payment.GET("/paypal/success", paymentCtrl.PayPalSuccess)
			payment.GET("/paypal/cancel", paymentCtrl.PayPalCancel)
		}

		api.GET("/payments", paymentCtrl.GetAllPayments)
		api.GET("/payments/:payment_id", paymentCtrl.GetPaymentByID)
	}

	bank := r.Group("/bank/api")
	bank.Use(middlewares.NewCallbackRateLimiter())
	{
		bank.POST("/transaction-sync", callbackCtrl.HandleTransactionSync)
	}

	return r
}
