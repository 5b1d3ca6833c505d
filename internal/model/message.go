package model

import (
	"encoding/json"
	"time"
)

type Message struct {
	ID             string      `db:"id" json:"id"`
	SessionID      string      `db:"session_id" json:"session_id"`
	Content        string      `db:"content" json:"content"`
	MessageType    MessageType `db:"message_type" json:"message_type"`
	FileName       *string     `db:"file_name" json:"file_name,omitempty"`
	SenderID       string      `db:"sender_id" json:"sender_id"`
	SenderNickname *string     `db:"sender_nickname" json:"sender_nickname,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	ExpiresAt      time.Time   `db:"expires_at" json:"expires_at"`
}

// EventData returns the JSON payload for a new_message broadcast.
func (m *Message) EventData() json.RawMessage {
	data, _ := json.Marshal(map[string]any{
		"id":              m.ID,
		"session_id":      m.SessionID,
		"content":         m.Content,
		"message_type":    m.MessageType,
		"file_name":       m.FileName,
		"sender_id":       m.SenderID,
		"sender_nickname": m.SenderNickname,
		"created_at":      m.CreatedAt.Format(time.RFC3339),
		"expires_at":      m.ExpiresAt.Format(time.RFC3339),
	})
	return data
}

type CreateMessageParams struct {
	ID             string
	SessionID      string
	Content        string
	MessageType    MessageType
	FileName       *string
	SenderID       string
	SenderNickname *string
	ExpiresAt      time.Time
}

// ExpiredMessage identifies a message removed by the expiry sweeper.
type ExpiredMessage struct {
	ID        string `db:"id"`
	SessionID string `db:"session_id"`
}
