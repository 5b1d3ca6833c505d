// Package payments is the boundary to the external checkout provider. The
// hub learns about completed payments only through the webhook; nothing here
// knows about provider internals beyond one create-checkout call.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const checkoutTimeout = 10 * time.Second

// CheckoutSession is the opaque reference handed back to the client, which
// completes payment on the provider's hosted page.
type CheckoutSession struct {
	ID  string `json:"checkout_id"`
	URL string `json:"checkout_url"`
}

type CreateCheckoutParams struct {
	SessionID   string
	SessionCode string
	AmountCents int
	Currency    string
	SuccessURL  string
	CancelURL   string
}

type CheckoutClient interface {
	CreateCheckout(ctx context.Context, params CreateCheckoutParams) (*CheckoutSession, error)
}

// HTTPCheckoutClient talks to the provider's REST API.
type HTTPCheckoutClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPCheckoutClient(baseURL, apiKey string) *HTTPCheckoutClient {
	return &HTTPCheckoutClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: checkoutTimeout,
		},
	}
}

func (c *HTTPCheckoutClient) CreateCheckout(ctx context.Context, params CreateCheckoutParams) (*CheckoutSession, error) {
	body, err := json.Marshal(map[string]any{
		"amount":      params.AmountCents,
		"currency":    params.Currency,
		"description": "Chat session Pro upgrade",
		"metadata": map[string]string{
			"session_id": params.SessionID,
		},
		"success_url": params.SuccessURL,
		"cancel_url":  params.CancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal checkout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checkout request: %w", err)
	}
	defer resp.Body.Close()

	log.Info().
		Str("sessionId", params.SessionID).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("checkout session requested")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("checkout provider returned %d: %s", resp.StatusCode, snippet)
	}

	var checkout CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&checkout); err != nil {
		return nil, fmt.Errorf("decode checkout response: %w", err)
	}
	if checkout.ID == "" || checkout.URL == "" {
		return nil, fmt.Errorf("checkout provider response missing id or url")
	}

	return &checkout, nil
}
