package membership

import (
	"time"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
)

// UserRecord is a registered user.
type UserRecord struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	Username       string    `gorm:"size:50;not null;uniqueIndex"`
	ProfilePicture string    `gorm:"size:255"`
	CreatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for UserRecord.
func (UserRecord) TableName() string {
	return "users"
}

// RoomRecord is a chat group.
type RoomRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"size:100;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for RoomRecord.
func (RoomRecord) TableName() string {
	return "rooms"
}

// RoomMemberRecord links a user to a room.
type RoomMemberRecord struct {
	RoomID   int64     `gorm:"primaryKey"`
	UserID   int64     `gorm:"primaryKey;index"`
	JoinedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for RoomMemberRecord.
func (RoomMemberRecord) TableName() string {
	return "room_members"
}

func (u UserRecord) toMember() domain.Member {
	picture := u.ProfilePicture
	if picture == "" {
		picture = domain.DefaultProfilePicture
	}
	return domain.Member{
		UserID:         domain.UserID(u.ID),
		Username:       u.Username,
		ProfilePicture: picture,
	}
}
