package messages

import domain "github.com/example/groupchat-realtime/domain/groupchat"

// Service names, prefixed by the framework with "services.messages.".
const (
	ServiceAppend = "append"
	ServiceRecent = "recent"
)

// AppendRequest is the request for the append service.
type AppendRequest struct {
	RoomID domain.RoomID `json:"room_id"`
	UserID domain.UserID `json:"user_id"`
	Text   string        `json:"text"`
}

// AppendResponse is the response for the append service.
type AppendResponse struct {
	Message domain.Message `json:"message"`
}

// RecentRequest is the request for the recent service.
type RecentRequest struct {
	RoomID domain.RoomID `json:"room_id"`
	Limit  int           `json:"limit"`
}

// RecentResponse is the response for the recent service.
type RecentResponse struct {
	Messages []domain.Message `json:"messages"`
}
