package groupchat

import "errors"

// Validation errors shared across modules.
var (
	ErrInvalidRoomID = errors.New("invalid room id")
	ErrInvalidUserID = errors.New("invalid user id")
)
