package services

import (
	"bytes"
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

// PayPalService is a thin wrapper over the PayPal REST payments API:
// obtain an OAuth token, create a payment, execute it after approval,
// fetch its details.
type PayPalService struct {
	config     *config.PayPalConfig
	httpClient *http.Client

	mu             sync.Mutex
	cachedToken    string
	tokenExpiresAt time.Time
}

func NewPayPalService(cfg *config.PayPalConfig) *PayPalService {
	return &PayPalService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ValidateConfig validates PayPal configuration
func (ps *PayPalService) ValidateConfig() error {
	if ps.config.Mock {
		return nil
	}
	if ps.config.ClientID == "" {
		return fmt.Errorf("PAYPAL_CLIENT_ID is not set")
	}
	if ps.config.ClientSecret == "" {
		return fmt.Errorf("PAYPAL_CLIENT_SECRET is not set")
	}
	return nil
}

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// PayPalLink is one HATEOAS link in a payment resource.
type PayPalLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

// PayPalPayment is the subset of the payment resource this service reads.
type PayPalPayment struct {
	ID    string       `json:"id"`
	State string       `json:"state"`
	Links []PayPalLink `json:"links"`
}

// ApprovalURL returns the redirect URL the payer must visit, or "".
func (p *PayPalPayment) ApprovalURL() string {
	for _, link := range p.Links {
		if link.Rel == "approval_url" {
			return link.Href
		}
	}
	return ""
}

func (ps *PayPalService) getAccessToken() (string, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.cachedToken != "" && time.Now().Before(ps.tokenExpiresAt) {
		return ps.cachedToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequest(http.MethodPost,
		ps.config.BaseURL+"/v1/oauth2/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(ps.config.ClientID, ps.config.ClientSecret)

	resp, err := ps.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get PayPal token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to get PayPal token: status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp paypalTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	ps.cachedToken = tokenResp.AccessToken
	ps.tokenExpiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - tokenSafetyMargin)

	return ps.cachedToken, nil
}

// CreatePayment creates a sale payment with redirect URLs and returns the
// created resource, including the approval link.
func (ps *PayPalService) CreatePayment(amount float64, currency, description, returnURL, cancelURL string) (*PayPalPayment, error) {
	payload := map[string]interface{}{
		"intent": "sale",
		"payer": map[string]string{
			"payment_method": "paypal",
		},
		"transactions": []map[string]interface{}{
			{
				"amount": map[string]string{
					"total":    fmt.Sprintf("%.2f", amount),
					"currency": currency,
				},
				"description": description,
			},
		},
		"redirect_urls": map[string]string{
			"return_url": returnURL,
			"cancel_url": cancelURL,
		},
	}

	return ps.doPaymentRequest(http.MethodPost, "/v1/payments/payment", payload)
}

// ExecutePayment completes an approved payment.
func (ps *PayPalService) ExecutePayment(paymentID, payerID string) (*PayPalPayment, error) {
	payload := map[string]string{
		"payer_id": payerID,
	}
	return ps.doPaymentRequest(http.MethodPost,
		"/v1/payments/payment/"+paymentID+"/execute", payload)
}

// GetPayment fetches payment details.
func (ps *PayPalService) GetPayment(paymentID string) (*PayPalPayment, error) {
	return ps.doPaymentRequest(http.MethodGet, "/v1/payments/payment/"+paymentID, nil)
}

func (ps *PayPalService) doPaymentRequest(method, path string, payload interface{}) (*PayPalPayment, error) {
	token, err := ps.getAccessToken()
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode PayPal request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, ps.config.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build PayPal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := ps.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("PayPal request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read PayPal response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		utils.ErrorLogger.Printf("PayPal API error: %s %s -> %d: %s", method, path, resp.StatusCode, string(body))
		return nil, fmt.Errorf("PayPal API error: status %d", resp.StatusCode)
	}

	var payment PayPalPayment
	if err := json.Unmarshal(body, &payment); err != nil {
		return nil, fmt.Errorf("failed to decode PayPal response: %w", err)
	}

	return &payment, nil
}
