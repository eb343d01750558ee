// Package messages persists chat messages per room and serves recent history.
package messages

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
)

const moduleName = "messages"

// Validation limits.
const (
	MaxMessageLength = 5000
	MaxRecentLimit   = 500
)

var (
	ErrEmptyMessage   = errors.New("message text cannot be empty")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
	ErrMessageInvalid = errors.New("message contains invalid characters")
	ErrInvalidLimit   = errors.New("limit must be positive")
)

// Store is an append-only per-room message log.
type Store interface {
	// Append persists a message and returns it with its id and timestamp.
	// It returns only after the write is durable.
	Append(ctx context.Context, roomID domain.RoomID, userID domain.UserID, text string) (*domain.Message, error)
	// Recent returns at most limit messages of the room, newest first.
	Recent(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error)
}

// ValidateText trims the text and checks it is storable.
func ValidateText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if len(text) > MaxMessageLength {
		return "", ErrMessageTooLong
	}
	if !utf8.ValidString(text) {
		return "", ErrMessageInvalid
	}
	return text, nil
}

func validateAppend(roomID domain.RoomID, userID domain.UserID, text string) (string, error) {
	if roomID <= 0 {
		return "", domain.ErrInvalidRoomID
	}
	if userID <= 0 {
		return "", domain.ErrInvalidUserID
	}
	return ValidateText(text)
}

func normalizeLimit(roomID domain.RoomID, limit int) (int, error) {
	if roomID <= 0 {
		return 0, domain.ErrInvalidRoomID
	}
	if limit <= 0 {
		return 0, ErrInvalidLimit
	}
	return min(limit, MaxRecentLimit), nil
}
