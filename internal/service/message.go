package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chatstealth/server-go/internal/config"
	apperrors "github.com/chatstealth/server-go/internal/errors"
	"github.com/chatstealth/server-go/internal/hub"
	"github.com/chatstealth/server-go/internal/model"
	"github.com/chatstealth/server-go/internal/repository"
)

type CreateMessageInput struct {
	SessionID      string            `json:"session_id"`
	Content        string            `json:"content"`
	MessageType    model.MessageType `json:"message_type"`
	FileName       *string           `json:"file_name,omitempty"`
	SenderID       string            `json:"sender_id"`
	SenderNickname *string           `json:"sender_nickname,omitempty"`
}

type MessageService struct {
	sessions repository.SessionRepository
	messages repository.MessageRepository
	hub      Hub
}

func NewMessageService(
	sessions repository.SessionRepository,
	messages repository.MessageRepository,
	liveHub Hub,
) *MessageService {
	return &MessageService{
		sessions: sessions,
		messages: messages,
		hub:      liveHub,
	}
}

// CreateMessage persists a message with the TTL of the session's tier at
// send time, then broadcasts it. The store write strictly precedes the
// broadcast: a record that cannot be stored is never announced.
func (s *MessageService) CreateMessage(ctx context.Context, input CreateMessageInput) (*model.Message, error) {
	if input.SessionID == "" {
		return nil, apperrors.MissingRequired("session_id")
	}
	if input.Content == "" {
		return nil, apperrors.MissingRequired("content")
	}
	if input.SenderID == "" {
		return nil, apperrors.MissingRequired("sender_id")
	}
	if input.MessageType == "" {
		input.MessageType = model.MessageTypeText
	}
	if !input.MessageType.IsValid() {
		return nil, apperrors.InvalidInput("message_type", "unknown type")
	}

	session, err := s.sessions.FindByID(ctx, input.SessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil || session.Expired(time.Now()) {
		return nil, apperrors.SessionNotFound()
	}
	if input.MessageType.ProOnly() && !session.IsPro() {
		return nil, apperrors.TierRestricted(string(input.MessageType))
	}

	ttl := time.Duration(session.MessageTTLMinutes) * time.Minute
	msg, err := s.messages.Create(ctx, model.CreateMessageParams{
		ID:             uuid.NewString(),
		SessionID:      input.SessionID,
		Content:        input.Content,
		MessageType:    input.MessageType,
		FileName:       input.FileName,
		SenderID:       input.SenderID,
		SenderNickname: input.SenderNickname,
		ExpiresAt:      time.Now().Add(ttl),
	})
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}

	if err := s.hub.Publish(ctx, msg.SessionID, hub.NewMessageEvent(msg), ""); err != nil {
		// The record is durable; a joining or refetching client will still
		// see it even if this push was lost.
		log.Warn().Err(err).
			Str("sessionId", msg.SessionID).
			Str("messageId", msg.ID).
			Msg("failed to broadcast new message")
	}

	log.Debug().
		Str("messageId", msg.ID).
		Str("sessionId", msg.SessionID).
		Str("type", string(msg.MessageType)).
		Time("expiresAt", msg.ExpiresAt).
		Msg("message created")

	return msg, nil
}

// ListMessages returns the session's unexpired history in send order.
func (s *MessageService) ListMessages(ctx context.Context, sessionID string) ([]model.Message, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil || session.Expired(time.Now()) {
		return nil, apperrors.SessionNotFound()
	}

	msgs, err := s.messages.ListUnexpiredBySession(ctx, sessionID, config.MessageHistoryLimit)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return msgs, nil
}
