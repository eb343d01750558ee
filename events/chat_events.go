package events

import (
	"time"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
	"github.com/go-monolith/mono/pkg/helper"
)

// MessageAppendedEvent is emitted after a chat message has been persisted.
type MessageAppendedEvent struct {
	MessageID      int64         `json:"message_id"`
	RoomID         domain.RoomID `json:"room_id"`
	UserID         domain.UserID `json:"user_id"`
	Username       string        `json:"username"`
	ProfilePicture string        `json:"profile_picture"`
	Text           string        `json:"text"`
	CreatedAt      time.Time     `json:"created_at"`
}

// PresenceChangedEvent is emitted after a presence write (or expiry) in a room.
type PresenceChangedEvent struct {
	RoomID    domain.RoomID `json:"room_id"`
	Timestamp time.Time     `json:"timestamp"`
}

// Event definitions for the chat domain.
var (
	// MessageAppendedV1 subject: events.chat.v1.message-appended
	MessageAppendedV1 = helper.EventDefinition[MessageAppendedEvent](
		"chat",
		"MessageAppended",
		"v1",
	)

	// PresenceChangedV1 subject: events.chat.v1.presence-changed
	PresenceChangedV1 = helper.EventDefinition[PresenceChangedEvent](
		"chat",
		"PresenceChanged",
		"v1",
	)
)
