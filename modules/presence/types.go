package presence

import domain "github.com/example/groupchat-realtime/domain/groupchat"

// Service names, prefixed by the framework with "services.presence.".
const (
	ServiceMarkOnline  = "mark-online"
	ServiceMarkOffline = "mark-offline"
	ServiceIsOnline    = "is-online"
	ServiceSnapshot    = "snapshot"
	ServiceSweep       = "sweep"
)

// MarkRequest is the request for mark-online, mark-offline and is-online.
type MarkRequest struct {
	RoomID domain.RoomID `json:"room_id"`
	UserID domain.UserID `json:"user_id"`
}

// MarkResponse is the response for mark-online and mark-offline.
type MarkResponse struct {
	Success bool `json:"success"`
}

// IsOnlineResponse is the response for is-online.
type IsOnlineResponse struct {
	Online bool `json:"online"`
}

// SnapshotRequest is the request for snapshot.
type SnapshotRequest struct {
	RoomID  domain.RoomID   `json:"room_id"`
	UserIDs []domain.UserID `json:"user_ids"`
}

// SnapshotResponse is the response for snapshot.
type SnapshotResponse struct {
	Statuses []domain.PresenceStatus `json:"statuses"`
}

// SweepRequest is the request for sweep.
type SweepRequest struct{}

// SweepResponse lists the rooms whose roster changed.
type SweepResponse struct {
	Rooms []domain.RoomID `json:"rooms"`
}
