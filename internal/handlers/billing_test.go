package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"studyhub-backend/internal/models"
)

type stubBillingService struct {
	validSignature string
	canceled       bool
}

func (s *stubBillingService) CreateCheckout(ctx context.Context, externalUserID, email, tier, successURL, cancelURL string) (*models.CheckoutSession, error) {
	return &models.CheckoutSession{CheckoutURL: "https://pay.example.com/s/abc"}, nil
}

func (s *stubBillingService) CancelSubscription(ctx context.Context, externalUserID string) error {
	s.canceled = true
	return nil
}

func (s *stubBillingService) GetSubscription(ctx context.Context, externalUserID string) (*models.Subscription, error) {
	return &models.Subscription{Plan: models.TierFree, Status: "none"}, nil
}

func (s *stubBillingService) VerifyWebhook(body []byte, signature string) bool {
	return signature == s.validSignature
}

type stubBillingUserRepo struct {
	lastExternal string
	lastTier     string
	calls        int
}

func (s *stubBillingUserRepo) SetSubscription(ctx context.Context, externalID, tier string) error {
	s.lastExternal = externalID
	s.lastTier = tier
	s.calls++
	return nil
}

func webhookRequest(body, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook", strings.NewReader(body))
	req.Header.Set("X-Webhook-Signature", signature)
	return req
}

func TestBillingHandler_Webhook_RejectsBadSignature(t *testing.T) {
	users := &stubBillingUserRepo{}
	h := NewBillingHandler(&stubBillingService{validSignature: "good"}, users, "https://app.example.com")

	rr := httptest.NewRecorder()
	h.Webhook(rr, webhookRequest(`{"type":"subscription.activated","external_id":"auth0|u1","plan":"premium"}`, "bad"))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
	if users.calls != 0 {
		t.Fatalf("an unsigned event must not touch the subscription")
	}
}

func TestBillingHandler_Webhook_ActivatesPlan(t *testing.T) {
	users := &stubBillingUserRepo{}
	h := NewBillingHandler(&stubBillingService{validSignature: "good"}, users, "https://app.example.com")

	rr := httptest.NewRecorder()
	h.Webhook(rr, webhookRequest(`{"type":"subscription.activated","external_id":"auth0|u1","plan":"premium"}`, "good"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if users.lastExternal != "auth0|u1" || users.lastTier != models.TierPremium {
		t.Fatalf("unexpected subscription update: external=%q tier=%q", users.lastExternal, users.lastTier)
	}
}

func TestBillingHandler_Webhook_CancelDowngradesToFree(t *testing.T) {
	users := &stubBillingUserRepo{}
	h := NewBillingHandler(&stubBillingService{validSignature: "good"}, users, "https://app.example.com")

	rr := httptest.NewRecorder()
	h.Webhook(rr, webhookRequest(`{"type":"subscription.canceled","external_id":"auth0|u1"}`, "good"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if users.lastTier != models.TierFree {
		t.Fatalf("expected downgrade to free, got %q", users.lastTier)
	}
}

func TestBillingHandler_Webhook_AcksUnknownEvents(t *testing.T) {
	users := &stubBillingUserRepo{}
	h := NewBillingHandler(&stubBillingService{validSignature: "good"}, users, "https://app.example.com")

	rr := httptest.NewRecorder()
	h.Webhook(rr, webhookRequest(`{"type":"invoice.created","external_id":"auth0|u1"}`, "good"))

	if rr.Code != http.StatusOK {
		t.Fatalf("unknown events should still be acknowledged, got %d", rr.Code)
	}
	if users.calls != 0 {
		t.Fatalf("unknown events must not touch the subscription")
	}
}
