package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/chatstealth/server-go/internal/util"
)

type contextKey string

const WebhookBodyContextKey contextKey = "webhookBody"

// GetWebhookBody returns the verified raw webhook payload, if any.
func GetWebhookBody(ctx context.Context) []byte {
	body, _ := ctx.Value(WebhookBodyContextKey).([]byte)
	return body
}

// CheckoutSignatureMiddleware authenticates payment webhooks with an HMAC
// over the raw body, carried in the X-Checkout-Signature header.
type CheckoutSignatureMiddleware struct {
	secret string
}

func NewCheckoutSignatureMiddleware(secret string) *CheckoutSignatureMiddleware {
	return &CheckoutSignatureMiddleware{secret: secret}
}

func (m *CheckoutSignatureMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error().Err(err).Msg("checkout signature middleware: failed to read body")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Failed to read request body",
			})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		if m.secret == "" {
			log.Warn().Msg("checkout signature verification bypassed: CHECKOUT_WEBHOOK_SECRET is not configured")
			ctx := context.WithValue(r.Context(), WebhookBodyContextKey, body)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		signature := r.Header.Get("X-Checkout-Signature")
		if signature == "" {
			log.Warn().Msg("checkout signature middleware: missing signature header")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing signature",
			})
			return
		}

		computed := util.HmacSHA256(m.secret, string(body))
		if !util.ConstantTimeEqual(computed, signature) {
			log.Warn().Msg("checkout signature middleware: invalid signature")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid signature",
			})
			return
		}

		ctx := context.WithValue(r.Context(), WebhookBodyContextKey, body)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
