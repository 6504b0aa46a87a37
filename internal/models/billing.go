package models

type CheckoutRequest struct {
	Plan string `json:"plan" validate:"required,oneof=premium pro"`
}

type CheckoutSession struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

type Subscription struct {
	Plan             string `json:"plan"`
	Status           string `json:"status"` // "active" | "canceled" | "none"
	CurrentPeriodEnd *int64 `json:"current_period_end,omitempty"`
}

// BillingWebhookEvent is the provider's callback payload. Only the fields the
// service acts on are decoded.
type BillingWebhookEvent struct {
	Type       string `json:"type"` // "subscription.activated" | "subscription.canceled"
	ExternalID string `json:"external_id"`
	Plan       string `json:"plan"`
}
