package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/ismafavesco/Esifi/internal/billing"
	"github.com/ismafavesco/Esifi/internal/identity"
)

const maxWebhookBodyBytes = 65536

type BillingHandler struct {
	svc           *billing.Service
	webhookSecret string
}

func NewBillingHandler(svc *billing.Service, webhookSecret string) *BillingHandler {
	return &BillingHandler{svc: svc, webhookSecret: webhookSecret}
}

// Checkout starts a Stripe Checkout Session and returns its URL.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	url, err := h.svc.CreateCheckoutSession(r.Context(), userID)
	if err != nil {
		slog.Error("checkout session failed", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create checkout session"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Webhook receives signed Stripe events and applies them to the local
// subscription records.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		body,
		r.Header.Get("Stripe-Signature"),
		h.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		slog.Warn("stripe webhook signature failed", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "signature verification failed"})
		return
	}

	if err := h.svc.HandleEvent(r.Context(), event); err != nil {
		slog.Error("stripe event failed", "type", event.Type, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to process event"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
