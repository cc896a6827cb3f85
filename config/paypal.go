package config

import (
	"os"
)

// PayPalConfig holds PayPal REST API credentials. Mock mode simulates
// successful payments without calling PayPal, for local testing.
type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	Mode         string // "sandbox" or "live"
	BaseURL      string
	ReturnURL    string
	CancelURL    string
	Mock         bool
}

// LoadPayPalConfig reads PayPal settings from environment variables.
func LoadPayPalConfig() *PayPalConfig {
	cfg := &PayPalConfig{
		ClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
		ClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
		Mode:         os.Getenv("PAYPAL_MODE"),
		BaseURL:      os.Getenv("PAYPAL_BASE_URL"),
		Mock:         os.Getenv("PAYPAL_MOCK") == "true",
	}

	if cfg.Mode == "" {
		cfg.Mode = "sandbox"
	}
	if cfg.BaseURL == "" {
		if cfg.Mode == "live" {
			cfg.BaseURL = "https://api.paypal.com"
		} else {
			cfg.BaseURL = "https://api.sandbox.paypal.com"
		}
	}

	appURL := os.Getenv("APP_BASE_URL")
	if appURL == "" {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		appURL = "http://localhost:" + port
	}
	cfg.ReturnURL = appURL + "/api/payment/paypal/success"
	cfg.CancelURL = appURL + "/api/payment/paypal/cancel"

	return cfg
}
