package services

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aims-group3/aims-payment/config"
	"github.com/aims-group3/aims-payment/utils"
)

// tokenSafetyMargin is shaved off the reported token lifetime so a token is
// never used right at its expiry.
const tokenSafetyMargin = 10 * time.Second

// VietQRService talks to the VietQR API: token generation on the dev host,
// QR generation on the api host. The access token is cached with its expiry
// and refreshed on demand.
type VietQRService struct {
	config     *config.VietQRConfig
	httpClient *http.Client

	mu             sync.Mutex
	cachedToken    string
	tokenExpiresAt time.Time
}

func NewVietQRService(cfg *config.VietQRConfig) *VietQRService {
	return &VietQRService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ValidateConfig validates VietQR configuration
func (vs *VietQRService) ValidateConfig() error {
	if vs.config.ClientID == "" {
		return fmt.Errorf("VIETQR_CLIENT_ID is not set")
	}
	if vs.config.ClientSecret == "" {
		return fmt.Errorf("VIETQR_CLIENT_SECRET is not set")
	}
	if vs.config.BankCode == "" {
		return fmt.Errorf("VIETQR_BANK_CODE is not set")
	}
	if vs.config.BankAccount == "" {
		return fmt.Errorf("VIETQR_BANK_ACCOUNT is not set")
	}
	if vs.config.UserBankName == "" {
		return fmt.Errorf("VIETQR_USER_BANK_NAME is not set")
	}
	return nil
}

type vietQRTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// VietQRGenerateRequest is the qr/generate-customer request body.
type VietQRGenerateRequest struct {
	BankCode     string `json:"bankCode"`
	BankAccount  string `json:"bankAccount"`
	UserBankName string `json:"userBankName"`
	Amount       string `json:"amount"`
	Content      string `json:"content"`
	OrderID      string `json:"orderId"`
}

// VietQRGenerateResponse is the qr/generate-customer response body.
type VietQRGenerateResponse struct {
	BankCode         string `json:"bankCode"`
	BankName         string `json:"bankName"`
	BankAccount      string `json:"bankAccount"`
	UserBankName     string `json:"userBankName"`
	Amount           string `json:"amount"`
	Content          string `json:"content"`
	QRCode           string `json:"qrCode"`
	ImgID            string `json:"imgId"`
	TransactionID    string `json:"transactionId"`
	TransactionRefID string `json:"transactionRefId"`
	QRLink           string `json:"qrLink"`
	OrderID          string `json:"orderId"`
}

// GetAccessToken returns a valid access token, refreshing the cached one when
// it has expired.
func (vs *VietQRService) GetAccessToken() (string, error) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if vs.cachedToken != "" && time.Now().Before(vs.tokenExpiresAt) {
		return vs.cachedToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequest(http.MethodPost,
		vs.config.TokenAPIURL+"/token_generate",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	auth := base64.StdEncoding.EncodeToString(
		[]byte(vs.config.ClientID + ":" + vs.config.ClientSecret))
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := vs.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get VietQR token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to get VietQR token: status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp vietQRTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("VietQR token response has no access_token")
	}

	vs.cachedToken = tokenResp.AccessToken
	vs.tokenExpiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - tokenSafetyMargin)
	utils.InfoLogger.Printf("VietQR token obtained successfully, expires in %d seconds", tokenResp.ExpiresIn)

	return vs.cachedToken, nil
}

// GenerateQRCode requests a payment QR from VietQR. Amount must be an integer
// VND value.
func (vs *VietQRService) GenerateQRCode(amountVnd int64, content string, orderID string) (*VietQRGenerateResponse, error) {
	token, err := vs.GetAccessToken()
	if err != nil {
		return nil, err
	}

	genReq := VietQRGenerateRequest{
		BankCode:     vs.config.BankCode,
		BankAccount:  vs.config.BankAccount,
		UserBankName: vs.config.UserBankName,
		Amount:       fmt.Sprintf("%d", amountVnd),
		Content:      content,
		OrderID:      orderID,
	}

	payload, err := json.Marshal(genReq)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost,
		vs.config.QRAPIURL+"/qr/generate-customer",
		bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build QR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := vs.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate VietQR QR code: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read QR response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to generate VietQR QR code: status %d: %s", resp.StatusCode, string(body))
	}

	var genResp VietQRGenerateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return nil, fmt.Errorf("failed to decode QR response: %w", err)
	}

	utils.InfoLogger.Printf("VietQR QR code generated successfully for order: %s", orderID)
	return &genResp, nil
}
