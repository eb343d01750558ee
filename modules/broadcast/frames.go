package broadcast

import (
	"encoding/json"
	"time"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
	"github.com/example/groupchat-realtime/events"
)

// Outbound frame types.
const (
	FrameMessage     = "message"
	FrameOnlineUsers = "online_users"
	FrameHistory     = "history"
	FrameError       = "error"
)

// MessageFrame carries one chat message to the room.
type MessageFrame struct {
	Type       string        `json:"type"`
	Message    string        `json:"message"`
	User       string        `json:"user"`
	UserID     domain.UserID `json:"user_id"`
	ProfilePic string        `json:"profile_pic"`
}

// OnlineUser is one roster entry of an online_users frame.
type OnlineUser struct {
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture"`
	IsOnline       bool   `json:"is_online"`
}

// OnlineUsersFrame is the full presence roster of a room.
type OnlineUsersFrame struct {
	Type  string       `json:"type"`
	Users []OnlineUser `json:"users"`
}

// HistoryEntry is one message of a history frame.
type HistoryEntry struct {
	ID         int64         `json:"id"`
	Message    string        `json:"message"`
	User       string        `json:"user"`
	UserID     domain.UserID `json:"user_id"`
	ProfilePic string        `json:"profile_pic"`
	CreatedAt  time.Time     `json:"created_at"`
}

// HistoryFrame is sent to a freshly connected client only, oldest first.
type HistoryFrame struct {
	Type     string         `json:"type"`
	Messages []HistoryEntry `json:"messages"`
}

// ErrorFrame is echoed to the sender only.
type ErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// NewMessageFrame builds the message frame for an appended message.
func NewMessageFrame(event events.MessageAppendedEvent) MessageFrame {
	return MessageFrame{
		Type:       FrameMessage,
		Message:    event.Text,
		User:       event.Username,
		UserID:     event.UserID,
		ProfilePic: event.ProfilePicture,
	}
}

// NewOnlineUsersFrame merges the members with their presence. Members
// missing from statuses are reported offline.
func NewOnlineUsersFrame(members []domain.Member, statuses []domain.PresenceStatus) OnlineUsersFrame {
	online := make(map[domain.UserID]bool, len(statuses))
	for _, s := range statuses {
		online[s.UserID] = s.IsOnline
	}
	users := make([]OnlineUser, 0, len(members))
	for _, m := range members {
		users = append(users, OnlineUser{
			Username:       m.Username,
			ProfilePicture: m.ProfilePicture,
			IsOnline:       online[m.UserID],
		})
	}
	return OnlineUsersFrame{Type: FrameOnlineUsers, Users: users}
}

// NewHistoryFrame turns newest-first messages into an oldest-first frame.
// profiles supplies display data; unknown authors get the default picture.
func NewHistoryFrame(newestFirst []domain.Message, profiles map[domain.UserID]domain.Member) HistoryFrame {
	entries := make([]HistoryEntry, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		msg := newestFirst[i]
		profile, ok := profiles[msg.UserID]
		if !ok {
			profile = domain.Member{UserID: msg.UserID, ProfilePicture: domain.DefaultProfilePicture}
		}
		entries = append(entries, HistoryEntry{
			ID:         msg.ID,
			Message:    msg.Text,
			User:       profile.Username,
			UserID:     msg.UserID,
			ProfilePic: profile.ProfilePicture,
			CreatedAt:  msg.CreatedAt,
		})
	}
	return HistoryFrame{Type: FrameHistory, Messages: entries}
}

// NewErrorFrame builds an error echo.
func NewErrorFrame(text string) ErrorFrame {
	return ErrorFrame{Type: FrameError, Error: text}
}

// Encode marshals a frame. Frames are plain structs, so this only fails on
// programming errors.
func Encode(frame any) ([]byte, error) {
	return json.Marshal(frame)
}
