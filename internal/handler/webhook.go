package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/chatstealth/server-go/internal/middleware"
	"github.com/chatstealth/server-go/internal/service"
)

const eventCheckoutCompleted = "checkout.completed"

type WebhookHandler struct {
	upgradeService *service.UpgradeService
}

func NewWebhookHandler(upgradeService *service.UpgradeService) *WebhookHandler {
	return &WebhookHandler{upgradeService: upgradeService}
}

type checkoutEvent struct {
	Type string `json:"type"`
	Data struct {
		CheckoutID string `json:"checkout_id"`
		Metadata   struct {
			SessionID string `json:"session_id"`
		} `json:"metadata"`
	} `json:"data"`
}

// POST /api/payments/webhook
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body := middleware.GetWebhookBody(r.Context())
	if body == nil {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to read body"})
			return
		}
	}

	var event checkoutEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Warn().Err(err).Msg("webhook: unparseable payload")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}

	if event.Type != eventCheckoutCompleted {
		// Providers send every event type we subscribed to; acknowledge the
		// ones we do not act on so they stop retrying.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	sessionID := event.Data.Metadata.SessionID
	if sessionID == "" {
		log.Warn().Str("checkoutId", event.Data.CheckoutID).Msg("webhook: completed checkout without session metadata")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if err := h.upgradeService.ConfirmUpgrade(r.Context(), sessionID); err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("webhook: failed to apply upgrade")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
