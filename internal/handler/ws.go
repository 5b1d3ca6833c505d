package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	apperrors "github.com/chatstealth/server-go/internal/errors"
	"github.com/chatstealth/server-go/internal/hub"
	"github.com/chatstealth/server-go/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Anonymous sessions authenticate by share code, not cookies, so
	// cross-origin upgrades carry no ambient credentials worth guarding.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WSHandler struct {
	hub *hub.Hub
}

func NewWSHandler(liveHub *hub.Hub) *WSHandler {
	return &WSHandler{hub: liveHub}
}

// GET /ws/{sessionID}
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake failure.
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client, err := h.hub.Register(r.Context(), sessionID)
	if err != nil {
		appErr, ok := apperrors.AsAppError(err)
		if !ok {
			appErr = apperrors.Internal("could not join session")
		}
		if writeErr := ws.WriteEvent(conn, hub.ErrorEvent(appErr)); writeErr != nil {
			log.Debug().Err(writeErr).Msg("failed to deliver rejection")
		}
		conn.Close()
		return
	}

	log.Debug().
		Str("sessionId", sessionID).
		Str("clientId", client.ID()).
		Msg("websocket connected")

	ws.NewConnection(h.hub, client, conn).Run(r.Context())
}
