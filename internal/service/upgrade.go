package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/chatstealth/server-go/internal/config"
	apperrors "github.com/chatstealth/server-go/internal/errors"
	"github.com/chatstealth/server-go/internal/payments"
	"github.com/chatstealth/server-go/internal/repository"
)

type UpgradeService struct {
	sessions repository.SessionRepository
	hub      Hub
	checkout payments.CheckoutClient
	appURL   string
}

func NewUpgradeService(
	sessions repository.SessionRepository,
	liveHub Hub,
	checkout payments.CheckoutClient,
	appURL string,
) *UpgradeService {
	return &UpgradeService{
		sessions: sessions,
		hub:      liveHub,
		checkout: checkout,
		appURL:   appURL,
	}
}

// CreateCheckout asks the payment collaborator for a hosted checkout
// reference for the session's Pro upgrade.
func (s *UpgradeService) CreateCheckout(ctx context.Context, sessionID string) (*payments.CheckoutSession, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.SessionNotFound()
	}
	if session.IsPro() {
		return nil, apperrors.AlreadyPro()
	}
	if s.checkout == nil {
		return nil, apperrors.PaymentFailed("checkout is not configured")
	}

	result, err := s.checkout.CreateCheckout(ctx, payments.CreateCheckoutParams{
		SessionID:   session.ID,
		SessionCode: session.Code,
		AmountCents: config.ProPriceCents,
		Currency:    "brl",
		SuccessURL:  fmt.Sprintf("%s/?upgraded=true&session=%s", s.appURL, session.Code),
		CancelURL:   fmt.Sprintf("%s/?session=%s", s.appURL, session.Code),
	})
	if err != nil {
		return nil, apperrors.PaymentFailed("provider unavailable").WithCause(err)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("checkoutId", result.ID).
		Msg("checkout session created")

	return result, nil
}

// ConfirmUpgrade applies a completed payment: the store flips to Pro and
// every live connection hears about it. Subsequent messages get the longer
// TTL; existing ones keep the expiry they were born with. Idempotent, since
// payment webhooks redeliver.
func (s *UpgradeService) ConfirmUpgrade(ctx context.Context, sessionID string) error {
	upgraded, err := s.sessions.Upgrade(ctx, sessionID)
	if err != nil {
		return apperrors.Database(err)
	}
	if upgraded == nil {
		// Already Pro, or the session no longer exists.
		session, err := s.sessions.FindByID(ctx, sessionID)
		if err != nil {
			return apperrors.Database(err)
		}
		if session == nil {
			return apperrors.SessionNotFound()
		}
		log.Debug().Str("sessionId", sessionID).Msg("upgrade confirmation replayed, session already pro")
		return nil
	}

	if err := s.hub.Upgrade(ctx, sessionID); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to broadcast upgrade")
	}

	log.Info().Str("sessionId", sessionID).Msg("session upgraded to pro")
	return nil
}
