package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/chatstealth/server-go/internal/model"
)

type MessageRepository interface {
	Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error)
	// ListUnexpiredBySession returns the session's messages ordered by
	// creation time, excluding any whose expires_at has passed.
	ListUnexpiredBySession(ctx context.Context, sessionID string, limit int) ([]model.Message, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
	// DeleteExpired removes all messages past their expires_at and reports
	// which sessions they belonged to.
	DeleteExpired(ctx context.Context) ([]model.ExpiredMessage, error)
	DeleteBySession(ctx context.Context, sessionID string) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) MessageRepository
}

type messageDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type messageRepo struct {
	db messageDB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) WithTx(tx *sqlx.Tx) MessageRepository {
	return &messageRepo{db: tx}
}

func (r *messageRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO messages
			(id, session_id, content, message_type, file_name,
			 sender_id, sender_nickname, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *
	`, params.ID, params.SessionID, params.Content, params.MessageType,
		params.FileName, params.SenderID, params.SenderNickname, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepo) ListUnexpiredBySession(ctx context.Context, sessionID string, limit int) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM messages
		WHERE session_id = $1 AND expires_at > NOW()
		ORDER BY created_at ASC
		LIMIT $2
	`, sessionID, limit)
	return msgs, err
}

func (r *messageRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM messages WHERE session_id = $1
	`, sessionID)
	return count, err
}

func (r *messageRepo) DeleteExpired(ctx context.Context) ([]model.ExpiredMessage, error) {
	var expired []model.ExpiredMessage
	err := r.db.SelectContext(ctx, &expired, `
		DELETE FROM messages
		WHERE expires_at <= NOW()
		RETURNING id, session_id
	`)
	return expired, err
}

func (r *messageRepo) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM messages WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
