package model

import "time"

type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeImage    MessageType = "image"
	MessageTypeVideo    MessageType = "video"
	MessageTypeDocument MessageType = "document"
)

func (t MessageType) IsValid() bool {
	switch t {
	case MessageTypeText, MessageTypeAudio, MessageTypeImage, MessageTypeVideo, MessageTypeDocument:
		return true
	}
	return false
}

// ProOnly reports whether the message type requires a Pro session.
func (t MessageType) ProOnly() bool {
	switch t {
	case MessageTypeImage, MessageTypeVideo, MessageTypeDocument:
		return true
	}
	return false
}

// Tier policy. TTL and capacity are functions of the tier alone; message
// expiry is fixed from the tier in effect at send time.
const (
	FreeTTLMinutes      = 10
	ProTTLMinutes       = 60
	FreeMaxParticipants = 5
	ProMaxParticipants  = 50

	// Absolute session lifetime, after which the session and all its
	// messages are purged regardless of tier.
	SessionLifetime = 24 * time.Hour
)

func MessageTTLMinutes(t Tier) int {
	if t == TierPro {
		return ProTTLMinutes
	}
	return FreeTTLMinutes
}

func MessageTTL(t Tier) time.Duration {
	return time.Duration(MessageTTLMinutes(t)) * time.Minute
}

func MaxParticipants(t Tier) int {
	if t == TierPro {
		return ProMaxParticipants
	}
	return FreeMaxParticipants
}
