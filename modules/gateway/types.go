package gateway

import "github.com/example/groupchat-realtime/modules/broadcast"

// HistoryResponse is the response of the message history endpoint.
type HistoryResponse struct {
	RoomID   int64                    `json:"room_id"`
	Messages []broadcast.HistoryEntry `json:"messages"`
}

// PresenceRequest is the HTTP heartbeat for clients without a socket.
// A missing is_active counts as active.
type PresenceRequest struct {
	RoomID   int64 `json:"room_id"`
	IsActive *bool `json:"is_active"`
}

// PresenceResponse acknowledges a PresenceRequest.
type PresenceResponse struct {
	RoomID   int64 `json:"room_id"`
	IsActive bool  `json:"is_active"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
