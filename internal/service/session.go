package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/chatstealth/server-go/internal/database"
	apperrors "github.com/chatstealth/server-go/internal/errors"
	"github.com/chatstealth/server-go/internal/hub"
	"github.com/chatstealth/server-go/internal/model"
	"github.com/chatstealth/server-go/internal/repository"
	"github.com/chatstealth/server-go/internal/util"
)

// collisions on a 36^6 space are vanishingly rare; the retry loop is bounded
// so a store fault can't spin it forever
const maxCodeAttempts = 5

// Hub is the slice of the live hub the services drive.
type Hub interface {
	Publish(ctx context.Context, sessionID string, event hub.Event, excludeSender string) error
	Upgrade(ctx context.Context, sessionID string) error
	Destroy(ctx context.Context, sessionID string) error
}

// TxRunner runs a function inside a store transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

type SessionService struct {
	db       TxRunner
	sessions repository.SessionRepository
	messages repository.MessageRepository
	hub      Hub
}

func NewSessionService(
	db TxRunner,
	sessions repository.SessionRepository,
	messages repository.MessageRepository,
	liveHub Hub,
) *SessionService {
	return &SessionService{
		db:       db,
		sessions: sessions,
		messages: messages,
		hub:      liveHub,
	}
}

func (s *SessionService) CreateSession(ctx context.Context, creatorNickname *string) (*model.Session, error) {
	code, err := s.uniqueCode(ctx)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Create(ctx, model.CreateSessionParams{
		ID:              uuid.NewString(),
		Code:            code,
		CreatorNickname: creatorNickname,
		ExpiresAt:       time.Now().Add(model.SessionLifetime),
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("code", session.Code).
		Time("expiresAt", session.ExpiresAt).
		Msg("session created")

	return session, nil
}

func (s *SessionService) uniqueCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := util.GenerateSessionCode()
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		inUse, err := s.sessions.CodeInUse(ctx, code)
		if err != nil {
			return "", apperrors.Database(err)
		}
		if !inUse {
			return code, nil
		}
	}
	return "", apperrors.Internal("could not allocate a unique session code")
}

// GetByCode resolves a share code to its active session. Codes are
// case-insensitive on input.
func (s *SessionService) GetByCode(ctx context.Context, code string) (*model.Session, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !util.IsValidSessionCode(code) {
		return nil, apperrors.InvalidInput("code", "must be 6 alphanumeric characters")
	}

	session, err := s.sessions.FindActiveByCode(ctx, code)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.SessionNotFound()
	}
	return session, nil
}

func (s *SessionService) GetByID(ctx context.Context, id string) (*model.Session, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil || session.Expired(time.Now()) {
		return nil, apperrors.SessionNotFound()
	}
	return session, nil
}

// Destroy tears a session down everywhere: live connections get the terminal
// broadcast first, then the session and its messages leave the store.
// Idempotent; destroying an absent session is a no-op with no broadcast.
func (s *SessionService) Destroy(ctx context.Context, sessionID string) error {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return apperrors.Database(err)
	}
	if session == nil {
		return nil
	}

	if err := s.hub.Destroy(ctx, sessionID); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to broadcast destruction")
	}

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.messages.WithTx(tx).DeleteBySession(ctx, sessionID); err != nil {
			return err
		}
		return s.sessions.WithTx(tx).Delete(ctx, sessionID)
	})
	if err != nil {
		return apperrors.Database(err)
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("code", session.Code).
		Msg("session destroyed")

	return nil
}

type UpgradeStatus struct {
	IsPro             bool `json:"is_pro"`
	MessageTTLMinutes int  `json:"message_ttl_minutes"`
	MaxParticipants   int  `json:"max_participants"`
}

// VerifyUpgrade is the read-back used by clients after returning from
// checkout, in case the webhook beat them to it.
func (s *SessionService) VerifyUpgrade(ctx context.Context, sessionID string) (*UpgradeStatus, error) {
	session, err := s.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &UpgradeStatus{
		IsPro:             session.IsPro(),
		MessageTTLMinutes: session.MessageTTLMinutes,
		MaxParticipants:   session.MaxParticipants,
	}, nil
}
