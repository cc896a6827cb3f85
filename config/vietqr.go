package config

import (
	"os"
	"strconv"
)

// DefaultUsdToVndRate is substituted when VIETQR_USD_TO_VND_RATE is unset or
// invalid, so amount conversion never divides by zero.
const DefaultUsdToVndRate = 25000.0

// VietQRConfig holds VietQR API credentials and the bank identity used when
// generating QR codes. Token and QR generation live on different hosts.
type VietQRConfig struct {
	TokenAPIURL  string
	QRAPIURL     string
	ClientID     string
	ClientSecret string
	BankCode     string
	BankAccount  string
	UserBankName string
	UsdToVndRate float64
}

// LoadVietQRConfig reads VietQR settings from environment variables.
func LoadVietQRConfig() *VietQRConfig {
	cfg := &VietQRConfig{
		TokenAPIURL:  os.Getenv("VIETQR_TOKEN_API_URL"),
		QRAPIURL:     os.Getenv("VIETQR_QR_API_URL"),
		ClientID:     os.Getenv("VIETQR_CLIENT_ID"),
		ClientSecret: os.Getenv("VIETQR_CLIENT_SECRET"),
		BankCode:     os.Getenv("VIETQR_BANK_CODE"),
		BankAccount:  os.Getenv("VIETQR_BANK_ACCOUNT"),
		UserBankName: os.Getenv("VIETQR_USER_BANK_NAME"),
	}

	if cfg.TokenAPIURL == "" {
		cfg.TokenAPIURL = "https://dev.vietqr.org/vqr/api"
	}
	if cfg.QRAPIURL == "" {
		cfg.QRAPIURL = "https://api.vietqr.org/vqr/api"
	}

	if raw := os.Getenv("VIETQR_USD_TO_VND_RATE"); raw != "" {
		if rate, err := strconv.ParseFloat(raw, 64); err == nil && rate > 0 {
			cfg.UsdToVndRate = rate
		}
	}
	if cfg.UsdToVndRate <= 0 {
		cfg.UsdToVndRate = DefaultUsdToVndRate
	}

	return cfg
}
