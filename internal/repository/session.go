package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/chatstealth/server-go/internal/model"
)

type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// FindActiveByCode resolves a session by its share code, excluding
	// sessions past their absolute lifetime.
	FindActiveByCode(ctx context.Context, code string) (*model.Session, error)
	CodeInUse(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	// Upgrade transitions the session to Pro. Monotonic: a session already
	// on Pro is left untouched.
	Upgrade(ctx context.Context, id string) (*model.Session, error)
	Delete(ctx context.Context, id string) error
	// ListExpired returns ids of sessions past their absolute lifetime cap.
	ListExpired(ctx context.Context) ([]string, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

// sessionDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sessionDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type sessionRepo struct {
	db sessionDB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE id = $1
	`, id)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) FindActiveByCode(ctx context.Context, code string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions
		WHERE code = $1 AND expires_at > NOW()
	`, code)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) CodeInUse(ctx context.Context, code string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM sessions
		WHERE code = $1 AND expires_at > NOW()
	`, code)
	return count > 0, err
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions
			(id, code, tier, message_ttl_minutes, max_participants, creator_nickname, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`, params.ID, params.Code, model.TierFree,
		model.FreeTTLMinutes, model.FreeMaxParticipants,
		params.CreatorNickname, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) Upgrade(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		UPDATE sessions SET
			tier = $2,
			message_ttl_minutes = $3,
			max_participants = $4,
			upgraded_at = NOW()
		WHERE id = $1 AND tier <> $2
		RETURNING *
	`, id, model.TierPro, model.ProTTLMinutes, model.ProMaxParticipants)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (r *sessionRepo) ListExpired(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		SELECT id FROM sessions WHERE expires_at <= NOW()
	`)
	return ids, err
}
