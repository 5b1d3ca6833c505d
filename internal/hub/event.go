package hub

import (
	"encoding/json"

	apperrors "github.com/chatstealth/server-go/internal/errors"
	"github.com/chatstealth/server-go/internal/model"
)

// EventType enumerates every kind of event the hub accepts or emits. Adding
// a kind means adding a constant and a constructor here; nothing dispatches
// on raw strings.
type EventType string

const (
	// Inbound (client to server)
	EventJoin   EventType = "join"
	EventLeave  EventType = "leave"
	EventTyping EventType = "typing"
	EventPing   EventType = "ping"

	// Outbound (server to client)
	EventNewMessage        EventType = "new_message"
	EventUserJoined        EventType = "user_joined"
	EventUserLeft          EventType = "user_left"
	EventParticipantUpdate EventType = "participant_update"
	EventSessionUpgraded   EventType = "session_upgraded"
	EventSessionDestroyed  EventType = "session_destroyed"
	EventMessagesExpired   EventType = "messages_expired"
	EventPong              EventType = "pong"
	EventError             EventType = "error"
)

type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func makeEvent(t EventType, data any) Event {
	raw, _ := json.Marshal(data)
	return Event{Type: t, Data: raw}
}

func NewMessageEvent(msg *model.Message) Event {
	return Event{Type: EventNewMessage, Data: msg.EventData()}
}

func UserJoinedEvent(nickname, senderID string, count int) Event {
	return makeEvent(EventUserJoined, map[string]any{
		"nickname":  nickname,
		"sender_id": senderID,
		"count":     count,
	})
}

func UserLeftEvent(nickname string, count int) Event {
	return makeEvent(EventUserLeft, map[string]any{
		"nickname": nickname,
		"count":    count,
	})
}

func TypingEvent(senderID, nickname string, isTyping bool) Event {
	return makeEvent(EventTyping, map[string]any{
		"sender_id": senderID,
		"nickname":  nickname,
		"is_typing": isTyping,
	})
}

func ParticipantUpdateEvent(count int) Event {
	return makeEvent(EventParticipantUpdate, map[string]any{
		"count": count,
	})
}

func SessionUpgradedEvent() Event {
	return makeEvent(EventSessionUpgraded, map[string]any{
		"tier":                model.TierPro,
		"message_ttl_minutes": model.ProTTLMinutes,
		"max_participants":    model.ProMaxParticipants,
	})
}

func SessionDestroyedEvent(message string) Event {
	return makeEvent(EventSessionDestroyed, map[string]any{
		"message": message,
	})
}

func MessagesExpiredEvent(messageIDs []string) Event {
	return makeEvent(EventMessagesExpired, map[string]any{
		"message_ids": messageIDs,
	})
}

func PongEvent() Event {
	return Event{Type: EventPong}
}

func ErrorEvent(err *apperrors.AppError) Event {
	return makeEvent(EventError, map[string]any{
		"code":    err.Code,
		"message": err.Message,
		"details": err.Details,
	})
}

// envelope is the wire format on the fan-out bus. ExcludeSender lets typing
// indicators skip their origin without a second channel.
type envelope struct {
	Event         Event  `json:"event"`
	ExcludeSender string `json:"exclude_sender,omitempty"`
}
