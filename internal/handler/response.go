package handler

import (
	"net/http"

	"github.com/chatstealth/server-go/internal/httputil"
	"github.com/chatstealth/server-go/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

// sessionResponse flattens the tier into an is_pro flag alongside the
// stored fields, which is what clients key their UI off.
type sessionResponse struct {
	*model.Session
	IsPro bool `json:"is_pro"`
}

func formatSession(s *model.Session) sessionResponse {
	return sessionResponse{Session: s, IsPro: s.IsPro()}
}
