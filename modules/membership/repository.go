package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DemoRoomID is the room created by Seed.
const DemoRoomID domain.RoomID = 7

// Repository implements Directory on gorm.
type Repository struct {
	db *gorm.DB
}

var _ Directory = (*Repository)(nil)

// NewRepository creates a repository on db. Call Migrate before use.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the users, rooms and room_members tables.
func (r *Repository) Migrate() error {
	if err := r.db.AutoMigrate(&UserRecord{}, &RoomRecord{}, &RoomMemberRecord{}); err != nil {
		return fmt.Errorf("failed to migrate membership tables: %w", err)
	}
	return nil
}

func (r *Repository) Members(ctx context.Context, roomID domain.RoomID) ([]domain.Member, error) {
	var users []UserRecord
	if err := r.db.WithContext(ctx).
		Table("users").
		Select("users.*").
		Joins("JOIN room_members ON room_members.user_id = users.id").
		Where("room_members.room_id = ?", int64(roomID)).
		Order("room_members.joined_at ASC").
		Order("users.id ASC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to load members of room %s: %w", roomID, err)
	}

	members := make([]domain.Member, 0, len(users))
	for _, u := range users {
		members = append(members, u.toMember())
	}
	return members, nil
}

func (r *Repository) IsMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&RoomMemberRecord{}).
		Where("room_id = ? AND user_id = ?", int64(roomID), int64(userID)).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

func (r *Repository) Profile(ctx context.Context, userID domain.UserID) (*domain.Member, error) {
	var user UserRecord
	if err := r.db.WithContext(ctx).First(&user, "id = ?", int64(userID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	member := user.toMember()
	return &member, nil
}

// CreateUser inserts a user and returns it with its id.
func (r *Repository) CreateUser(ctx context.Context, username, picture string) (*UserRecord, error) {
	user := &UserRecord{Username: username, ProfilePicture: picture, CreatedAt: time.Now().UTC()}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// CreateRoom inserts a room with an explicit id.
func (r *Repository) CreateRoom(ctx context.Context, roomID domain.RoomID, name string) error {
	room := &RoomRecord{ID: int64(roomID), Name: name, CreatedAt: time.Now().UTC()}
	if err := r.db.WithContext(ctx).Create(room).Error; err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// AddMember links a user to a room. Adding an existing member is a no-op.
func (r *Repository) AddMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID, joinedAt time.Time) error {
	member := &RoomMemberRecord{RoomID: int64(roomID), UserID: int64(userID), JoinedAt: joinedAt.UTC()}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(member).Error; err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// Seed creates the demo room with alice, bob and carol when no user exists.
// It returns the created users, or nil when the database was not empty.
func (r *Repository) Seed(ctx context.Context) ([]UserRecord, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&UserRecord{}).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return nil, nil
	}

	var created []UserRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := NewRepository(tx)
		if err := txRepo.CreateRoom(ctx, DemoRoomID, "General"); err != nil {
			return err
		}
		joined := time.Now().UTC()
		for i, name := range []string{"alice", "bob", "carol"} {
			user, err := txRepo.CreateUser(ctx, name, "")
			if err != nil {
				return err
			}
			if err := txRepo.AddMember(ctx, DemoRoomID, domain.UserID(user.ID), joined.Add(time.Duration(i)*time.Second)); err != nil {
				return err
			}
			created = append(created, *user)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to seed membership: %w", err)
	}
	return created, nil
}

// Ping checks the underlying connection.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
