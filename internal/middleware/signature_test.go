package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chatstealth/server-go/internal/util"
)

func TestCheckoutSignatureMiddleware(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("passes through when secret is empty", func(t *testing.T) {
		m := NewCheckoutSignatureMiddleware("")
		handler := m.Handler(okHandler)

		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"type":"x"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects request without signature header", func(t *testing.T) {
		m := NewCheckoutSignatureMiddleware("secret")
		handler := m.Handler(okHandler)

		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects request with invalid signature", func(t *testing.T) {
		m := NewCheckoutSignatureMiddleware("secret")
		handler := m.Handler(okHandler)

		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
		req.Header.Set("X-Checkout-Signature", "bogus")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("allows request with valid signature", func(t *testing.T) {
		body := `{"type":"checkout.completed"}`
		m := NewCheckoutSignatureMiddleware("secret")
		handler := m.Handler(okHandler)

		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
		req.Header.Set("X-Checkout-Signature", util.HmacSHA256("secret", body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("stores the verified body in context", func(t *testing.T) {
		body := `{"type":"checkout.completed"}`
		var seen []byte
		m := NewCheckoutSignatureMiddleware("secret")
		handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetWebhookBody(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
		req.Header.Set("X-Checkout-Signature", util.HmacSHA256("secret", body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, body, string(seen))
	})
}
