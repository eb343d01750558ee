// Package groupchat holds the entities shared by the group chat modules.
package groupchat

import (
	"strconv"
	"time"
)

// DefaultProfilePicture is used when a user has no avatar of their own.
const DefaultProfilePicture = "/static/images/default.jpg"

// RoomID identifies a chat group.
type RoomID int64

func (id RoomID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseRoomID parses a decimal room id.
func ParseRoomID(s string) (RoomID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, ErrInvalidRoomID
	}
	return RoomID(v), nil
}

// UserID identifies a user.
type UserID int64

func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Identity is the resolved identity behind a connection.
type Identity struct {
	UserID   UserID `json:"user_id"`
	Username string `json:"username"`
}

// Member is a durable room member plus display metadata.
type Member struct {
	UserID         UserID `json:"user_id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture"`
}

// Message is an immutable chat message.
type Message struct {
	ID        int64     `json:"id"`
	RoomID    RoomID    `json:"room_id"`
	UserID    UserID    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// PresenceStatus is the online flag of one user in one room.
type PresenceStatus struct {
	UserID   UserID `json:"user_id"`
	IsOnline bool   `json:"is_online"`
}
