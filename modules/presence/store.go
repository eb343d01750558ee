// Package presence tracks which users are online in which room, with a
// heartbeat window after which an unrefreshed entry counts as offline.
package presence

import (
	"context"
	"time"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
)

const moduleName = "presence"

// DefaultHeartbeatWindow is used when no window is configured.
const DefaultHeartbeatWindow = 60 * time.Second

// Store records per-room presence.
type Store interface {
	// MarkOnline records that the user is present in the room now.
	MarkOnline(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	// MarkOffline removes the user's presence in the room. Idempotent.
	MarkOffline(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	// IsOnline reports whether the user refreshed within the heartbeat window.
	IsOnline(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error)
	// Snapshot returns one status per user id, in input order.
	Snapshot(ctx context.Context, roomID domain.RoomID, userIDs []domain.UserID) ([]domain.PresenceStatus, error)
	// Sweep drops expired entries and returns the rooms that lost someone.
	Sweep(ctx context.Context) ([]domain.RoomID, error)
}
