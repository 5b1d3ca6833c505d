package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chatstealth/server-go/internal/model"
	"github.com/chatstealth/server-go/internal/payments"
)

func activeSession(id, code string) *model.Session {
	return &model.Session{
		ID:                id,
		Code:              code,
		Tier:              model.TierFree,
		MessageTTLMinutes: model.FreeTTLMinutes,
		MaxParticipants:   model.FreeMaxParticipants,
		CreatedAt:         time.Now(),
		ExpiresAt:         time.Now().Add(model.SessionLifetime),
	}
}

func TestSessionHandler_Create(t *testing.T) {
	t.Run("creates a session and returns 201", func(t *testing.T) {
		h, deps := newSessionHandler()

		deps.sessions.On("CodeInUse", mock.Anything, mock.Anything).Return(false, nil)
		deps.sessions.On("Create", mock.Anything, mock.Anything).
			Return(activeSession("sess-1", "XK29QZ"), nil)

		body := bytes.NewBufferString(`{"nickname":"Ana"}`)
		req := httptest.NewRequest(http.MethodPost, "/", body)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "sess-1", resp["id"])
		assert.Equal(t, "XK29QZ", resp["code"])
		assert.Equal(t, false, resp["is_pro"])
		assert.Equal(t, float64(model.FreeTTLMinutes), resp["message_ttl_minutes"])
	})

	t.Run("an empty body is fine, the nickname is optional", func(t *testing.T) {
		h, deps := newSessionHandler()

		deps.sessions.On("CodeInUse", mock.Anything, mock.Anything).Return(false, nil)
		deps.sessions.On("Create", mock.Anything, mock.MatchedBy(func(p model.CreateSessionParams) bool {
			return p.CreatorNickname == nil
		})).Return(activeSession("sess-1", "XK29QZ"), nil)

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("malformed JSON is a 400", func(t *testing.T) {
		h, _ := newSessionHandler()

		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{nope"))
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSessionHandler_GetByCode(t *testing.T) {
	t.Run("resolves a share code", func(t *testing.T) {
		h, deps := newSessionHandler()

		deps.sessions.On("FindActiveByCode", mock.Anything, "XK29QZ").
			Return(activeSession("sess-1", "XK29QZ"), nil)

		req := httptest.NewRequest(http.MethodGet, "/xk29qz", nil)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "sess-1", resp["id"])
	})

	t.Run("unknown code is a 404 with a stable error shape", func(t *testing.T) {
		h, deps := newSessionHandler()

		deps.sessions.On("FindActiveByCode", mock.Anything, "ZZZZ99").Return(nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/ZZZZ99", nil)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "SESSION_NOT_FOUND", resp["code"])
	})
}

func TestSessionHandler_ListMessages(t *testing.T) {
	t.Run("returns the unexpired history", func(t *testing.T) {
		h, deps := newSessionHandler()

		sessionID := "0b7ee60e-59b0-4d3c-9c3f-8f1f0b0a1234"
		deps.sessions.On("FindByID", mock.Anything, sessionID).
			Return(activeSession(sessionID, "XK29QZ"), nil)
		deps.messages.On("ListUnexpiredBySession", mock.Anything, sessionID, mock.AnythingOfType("int")).
			Return([]model.Message{
				{ID: "m1", SessionID: sessionID, Content: "oi"},
				{ID: "m2", SessionID: sessionID, Content: "tudo bem?"},
			}, nil)

		req := httptest.NewRequest(http.MethodGet, "/"+sessionID+"/messages", nil)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp, 2)
		assert.Equal(t, "m1", resp[0]["id"])
	})

	t.Run("malformed session id never reaches the store", func(t *testing.T) {
		h, _ := newSessionHandler()

		req := httptest.NewRequest(http.MethodGet, "/not-a-uuid00/messages", nil)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "SESSION_NOT_FOUND", resp["code"])
	})
}

func TestSessionHandler_Destroy(t *testing.T) {
	t.Run("broadcasts then deletes", func(t *testing.T) {
		h, deps := newSessionHandler()

		sessionID := "0b7ee60e-59b0-4d3c-9c3f-8f1f0b0a1234"
		deps.sessions.On("FindByID", mock.Anything, sessionID).
			Return(activeSession(sessionID, "XK29QZ"), nil)
		deps.hub.On("Destroy", mock.Anything, sessionID).Return(nil)
		deps.messages.On("DeleteBySession", mock.Anything, sessionID).Return(int64(3), nil)
		deps.sessions.On("Delete", mock.Anything, sessionID).Return(nil)

		req := httptest.NewRequest(http.MethodDelete, "/"+sessionID, nil)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		deps.hub.AssertExpectations(t)
		deps.sessions.AssertExpectations(t)
	})

	t.Run("destroying an absent session still returns 200", func(t *testing.T) {
		h, deps := newSessionHandler()

		sessionID := "0b7ee60e-59b0-4d3c-9c3f-8f1f0b0a1234"
		deps.sessions.On("FindByID", mock.Anything, sessionID).Return(nil, nil)

		req := httptest.NewRequest(http.MethodDelete, "/"+sessionID, nil)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		deps.hub.AssertNotCalled(t, "Destroy", mock.Anything, mock.Anything)
	})
}

func TestSessionHandler_CreateUpgrade(t *testing.T) {
	t.Run("returns the checkout reference", func(t *testing.T) {
		h, deps := newSessionHandler()

		sessionID := "0b7ee60e-59b0-4d3c-9c3f-8f1f0b0a1234"
		deps.sessions.On("FindByID", mock.Anything, sessionID).
			Return(activeSession(sessionID, "XK29QZ"), nil)
		deps.checkout.On("CreateCheckout", mock.Anything, mock.Anything).
			Return(&payments.CheckoutSession{ID: "co-1", URL: "https://pay.test/co-1"}, nil)

		req := httptest.NewRequest(http.MethodPost, "/"+sessionID+"/upgrade", nil)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "co-1", resp["checkout_id"])
		assert.Equal(t, "https://pay.test/co-1", resp["checkout_url"])
	})

	t.Run("upgrading a pro session is a 400", func(t *testing.T) {
		h, deps := newSessionHandler()

		sessionID := "0b7ee60e-59b0-4d3c-9c3f-8f1f0b0a1234"
		pro := activeSession(sessionID, "XK29QZ")
		pro.Tier = model.TierPro
		deps.sessions.On("FindByID", mock.Anything, sessionID).Return(pro, nil)

		req := httptest.NewRequest(http.MethodPost, "/"+sessionID+"/upgrade", nil)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSessionHandler_VerifyUpgrade(t *testing.T) {
	t.Run("reflects the stored tier", func(t *testing.T) {
		h, deps := newSessionHandler()

		sessionID := "0b7ee60e-59b0-4d3c-9c3f-8f1f0b0a1234"
		pro := activeSession(sessionID, "XK29QZ")
		pro.Tier = model.TierPro
		pro.MessageTTLMinutes = model.ProTTLMinutes
		pro.MaxParticipants = model.ProMaxParticipants
		deps.sessions.On("FindByID", mock.Anything, sessionID).Return(pro, nil)

		req := httptest.NewRequest(http.MethodPost, "/"+sessionID+"/verify-upgrade", nil)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["is_pro"])
		assert.Equal(t, float64(model.ProTTLMinutes), resp["message_ttl_minutes"])
	})
}
