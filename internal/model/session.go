package model

import "time"

type Session struct {
	ID                string     `db:"id" json:"id"`
	Code              string     `db:"code" json:"code"`
	Tier              Tier       `db:"tier" json:"tier"`
	MessageTTLMinutes int        `db:"message_ttl_minutes" json:"message_ttl_minutes"`
	MaxParticipants   int        `db:"max_participants" json:"max_participants"`
	CreatorNickname   *string    `db:"creator_nickname" json:"creator_nickname,omitempty"`
	UpgradedAt        *time.Time `db:"upgraded_at" json:"upgraded_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt         time.Time  `db:"expires_at" json:"expires_at"`
}

func (s *Session) IsPro() bool {
	return s.Tier == TierPro
}

// Expired reports whether the session has passed its absolute lifetime cap.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type CreateSessionParams struct {
	ID              string
	Code            string
	CreatorNickname *string
	ExpiresAt       time.Time
}
