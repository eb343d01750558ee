package messages

import (
	"time"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
)

// MessageRecord is the persisted form of a chat message.
type MessageRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	RoomID    int64     `gorm:"not null;index:idx_messages_room_created,priority:1"`
	UserID    int64     `gorm:"not null"`
	Text      string    `gorm:"size:5000;not null"`
	CreatedAt time.Time `gorm:"not null;index:idx_messages_room_created,priority:2"`
}

// TableName returns the table name for MessageRecord.
func (MessageRecord) TableName() string {
	return "messages"
}

func (r MessageRecord) toDomain() domain.Message {
	return domain.Message{
		ID:        r.ID,
		RoomID:    domain.RoomID(r.RoomID),
		UserID:    domain.UserID(r.UserID),
		Text:      r.Text,
		CreatedAt: r.CreatedAt,
	}
}
