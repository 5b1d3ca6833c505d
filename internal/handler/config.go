package handler

import (
	"net/http"

	"github.com/chatstealth/server-go/internal/config"
	"github.com/chatstealth/server-go/internal/model"
)

// ConfigHandler exposes the client bootstrap values: the publishable
// payment key and the tier limits the UI renders before any session exists.
type ConfigHandler struct {
	publishableKey string
}

func NewConfigHandler(publishableKey string) *ConfigHandler {
	return &ConfigHandler{publishableKey: publishableKey}
}

// GET /api/config
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"publishable_key":  h.publishableKey,
		"pro_price":        config.ProPriceCents,
		"free_ttl_minutes": model.FreeTTLMinutes,
		"pro_ttl_minutes":  model.ProTTLMinutes,
	})
}
