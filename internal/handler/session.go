package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/chatstealth/server-go/internal/errors"
	"github.com/chatstealth/server-go/internal/service"
	"github.com/chatstealth/server-go/internal/util"
)

type SessionHandler struct {
	sessionService *service.SessionService
	messageService *service.MessageService
	upgradeService *service.UpgradeService
}

func NewSessionHandler(
	sessionService *service.SessionService,
	messageService *service.MessageService,
	upgradeService *service.UpgradeService,
) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		messageService: messageService,
		upgradeService: upgradeService,
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	// share codes are exactly six characters, session ids are UUIDs, so the
	// two lookups can share the level without ambiguity
	r.Get("/{code:[A-Za-z0-9]{6}}", h.GetByCode)
	r.Route("/{sessionID}", func(r chi.Router) {
		r.Use(requireSessionID)
		r.Get("/messages", h.ListMessages)
		r.Delete("/", h.Destroy)
		r.Post("/upgrade", h.CreateUpgrade)
		r.Post("/verify-upgrade", h.VerifyUpgrade)
	})

	return r
}

// POST /api/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nickname *string `json:"nickname"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperrors.InvalidInput("body", "invalid JSON"))
			return
		}
	}

	session, err := h.sessionService.CreateSession(r.Context(), req.Nickname)
	if err != nil {
		log.Error().Err(err).Msg("failed to create session")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, formatSession(session))
}

// GET /api/sessions/{code}
func (h *SessionHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	session, err := h.sessionService.GetByCode(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, formatSession(session))
}

// GET /api/sessions/{sessionID}/messages
func (h *SessionHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := h.messageService.ListMessages(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

// DELETE /api/sessions/{sessionID}
func (h *SessionHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.sessionService.Destroy(r.Context(), sessionID); err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("failed to destroy session")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "destroyed"})
}

// POST /api/sessions/{sessionID}/upgrade
func (h *SessionHandler) CreateUpgrade(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	checkout, err := h.upgradeService.CreateCheckout(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, checkout)
}

// POST /api/sessions/{sessionID}/verify-upgrade
func (h *SessionHandler) VerifyUpgrade(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	status, err := h.sessionService.VerifyUpgrade(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// requireSessionID rejects malformed session ids before they reach the
// store, where a bad uuid cast would read as an infrastructure failure.
func requireSessionID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !util.IsValidUUID(chi.URLParam(r, "sessionID")) {
			writeError(w, apperrors.SessionNotFound())
			return
		}
		next.ServeHTTP(w, r)
	})
}
