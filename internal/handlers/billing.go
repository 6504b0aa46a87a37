package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"studyhub-backend/internal/middleware"
	"studyhub-backend/internal/models"
)

type BillingHandler struct {
	billing     billingService
	userRepo    billingUserRepository
	frontendURL string
}

type billingService interface {
	CreateCheckout(ctx context.Context, externalUserID, email, tier, successURL, cancelURL string) (*models.CheckoutSession, error)
	CancelSubscription(ctx context.Context, externalUserID string) error
	GetSubscription(ctx context.Context, externalUserID string) (*models.Subscription, error)
	VerifyWebhook(body []byte, signature string) bool
}

type billingUserRepository interface {
	SetSubscription(ctx context.Context, externalID, tier string) error
}

func NewBillingHandler(billing billingService, userRepo billingUserRepository, frontendURL string) *BillingHandler {
	return &BillingHandler{billing: billing, userRepo: userRepo, frontendURL: frontendURL}
}

func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if fields := validateStruct(req); fields != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	session, err := h.billing.CreateCheckout(
		r.Context(),
		identity.ExternalID,
		identity.Email,
		req.Plan,
		h.frontendURL+"/billing/success",
		h.frontendURL+"/billing/canceled",
	)
	if err != nil {
		log.Printf("checkout creation failed for %s: %v", identity.ExternalID, err)
		writeJSON(w, http.StatusBadGateway, errorResp("BILLING_UNAVAILABLE", "Billing service is unavailable", r))
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (h *BillingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	if err := h.billing.CancelSubscription(r.Context(), identity.ExternalID); err != nil {
		log.Printf("subscription cancel failed for %s: %v", identity.ExternalID, err)
		writeJSON(w, http.StatusBadGateway, errorResp("BILLING_UNAVAILABLE", "Billing service is unavailable", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Cancellation scheduled"})
}

func (h *BillingHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	sub, err := h.billing.GetSubscription(r.Context(), identity.ExternalID)
	if err != nil {
		log.Printf("subscription lookup failed for %s: %v", identity.ExternalID, err)
		writeJSON(w, http.StatusBadGateway, errorResp("BILLING_UNAVAILABLE", "Billing service is unavailable", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"subscription": sub})
}

// Webhook receives subscription lifecycle events from the provider. It is the
// only path that mutates the local subscription tier.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if !h.billing.VerifyWebhook(body, r.Header.Get("X-Webhook-Signature")) {
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Invalid webhook signature", r))
		return
	}

	var event models.BillingWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid event payload", r))
		return
	}

	tier := models.TierFree
	switch event.Type {
	case "subscription.activated":
		if event.Plan != models.TierPremium && event.Plan != models.TierPro {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Unknown plan", r))
			return
		}
		tier = event.Plan
	case "subscription.canceled":
		tier = models.TierFree
	default:
		// Unhandled event types are acknowledged so the provider stops retrying.
		writeJSON(w, http.StatusOK, map[string]string{"message": "Ignored"})
		return
	}

	if err := h.userRepo.SetSubscription(r.Context(), event.ExternalID, tier); err != nil {
		log.Printf("failed to apply webhook %s for %s: %v", event.Type, event.ExternalID, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to apply event", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Applied"})
}
