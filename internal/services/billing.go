package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"studyhub-backend/internal/models"
)

// BillingService proxies checkout and subscription management to the hosted
// billing provider. Subscription state flows back through the webhook.
type BillingService struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	client        *http.Client
}

func NewBillingService(baseURL, apiKey, webhookSecret string) *BillingService {
	return &BillingService{
		baseURL:       baseURL,
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		client:        &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateCheckout asks the provider for a hosted checkout session for the
// requested tier and returns its URL.
func (s *BillingService) CreateCheckout(ctx context.Context, externalUserID, email, tier, successURL, cancelURL string) (*models.CheckoutSession, error) {
	payload := map[string]string{
		"customer_reference": externalUserID,
		"customer_email":     email,
		"plan":               tier,
		"success_url":        successURL,
		"cancel_url":         cancelURL,
	}

	var session models.CheckoutSession
	if err := s.post(ctx, "/v1/checkout/sessions", payload, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CancelSubscription schedules a cancellation at the current period end.
func (s *BillingService) CancelSubscription(ctx context.Context, externalUserID string) error {
	payload := map[string]string{
		"customer_reference": externalUserID,
	}
	return s.post(ctx, "/v1/subscriptions/cancel", payload, nil)
}

// GetSubscription reads the current subscription state from the provider.
func (s *BillingService) GetSubscription(ctx context.Context, externalUserID string) (*models.Subscription, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+"/v1/subscriptions/"+externalUserID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("billing request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &models.Subscription{Plan: models.TierFree, Status: "none"}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("billing API returned %d: %s", resp.StatusCode, string(body))
	}

	var sub models.Subscription
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return nil, fmt.Errorf("failed to decode subscription: %w", err)
	}
	return &sub, nil
}

// VerifyWebhook checks the HMAC signature the provider sends with each event.
func (s *BillingService) VerifyWebhook(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s *BillingService) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal billing payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("billing request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("billing API returned %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode billing response: %w", err)
	}
	return nil
}
