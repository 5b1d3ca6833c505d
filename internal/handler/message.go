package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/chatstealth/server-go/internal/errors"
	"github.com/chatstealth/server-go/internal/service"
)

type MessageHandler struct {
	messageService *service.MessageService
}

func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

func (h *MessageHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	return r
}

// POST /api/messages
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateMessageInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "invalid JSON"))
		return
	}

	msg, err := h.messageService.CreateMessage(r.Context(), req)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeStoreUnavailable {
			log.Error().Err(err).Str("sessionId", req.SessionID).Msg("message store write failed")
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}
