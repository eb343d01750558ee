// Package membership answers who belongs to which room, who a user is and
// which identity sits behind a connection token.
package membership

import (
	"context"
	"errors"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
)

const moduleName = "membership"

// ErrUserNotFound is returned when a profile lookup finds no user.
var ErrUserNotFound = errors.New("user not found")

// Directory is the read side of room membership and user profiles.
type Directory interface {
	// Members returns the durable members of a room ordered by join time.
	Members(ctx context.Context, roomID domain.RoomID) ([]domain.Member, error)
	IsMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error)
	Profile(ctx context.Context, userID domain.UserID) (*domain.Member, error)
}
