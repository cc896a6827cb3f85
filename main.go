package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/aims-group3/aims-payment/config"
	"github.com/aims-group3/aims-payment/middlewares"
	"github.com/aims-group3/aims-payment/models"
	"github.com/aims-group3/aims-payment/router"
	"github.com/aims-group3/aims-payment/services"
	"github.com/aims-group3/aims-payment/utils"
	"gorm.io/gorm"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or error loading: %v", err)
	}

	utils.InitLogger()
}

func main() {
	db, err := config.InitDB()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}

	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	autoMigrate(db)

	vietqrCfg := config.LoadVietQRConfig()
	paypalCfg := config.LoadPayPalConfig()

	vietqrSvc := services.NewVietQRService(vietqrCfg)
	paypalSvc := services.NewPayPalService(paypalCfg)
	if err := vietqrSvc.ValidateConfig(); err != nil {
		utils.ErrorLogger.Printf("Warning: VietQR config incomplete: %v", err)
	}
	if err := paypalSvc.ValidateConfig(); err != nil {
		utils.ErrorLogger.Printf("Warning: PayPal config incomplete: %v", err)
	}

	registry := services.NewStrategyRegistry(
		services.NewPayPalStrategy(paypalSvc, paypalCfg),
		services.NewVietQRStrategy(vietqrSvc, vietqrCfg),
	)
	paymentSvc := services.NewPaymentService(db, registry)
	// Cancel pending payments whose QR codes expired.
	paymentSvc.StartExpiryChecker(5 * time.Minute)

	callbackSvc := services.NewVietQRCallbackService(db, vietqrCfg)

	rateLimiter := middlewares.NewRateLimiter(50, 1)

	r := router.SetupRouter(db, paymentSvc, callbackSvc)
	r.Use(rateLimiter.RateLimit())

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	utils.InfoLogger.Printf("Listening on port %s", port)
	if err := r.Run(":" + port); err != nil {
		utils.ErrorLogger.Fatal(err)
	}
}

func autoMigrate(db *gorm.DB) {
	err := db.AutoMigrate(
		&models.Order{},
		&models.Payment{},
	)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")
}
