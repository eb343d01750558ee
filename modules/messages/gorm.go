package messages

import (
	"context"
	"fmt"
	"time"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
	"gorm.io/gorm"
)

// GormStore keeps messages in a gorm-managed table (SQLite by default).
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ Store = (*GormStore)(nil)

// NewGormStore creates a store on db. Call Migrate before use.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

// Migrate creates the messages table and its index.
func (s *GormStore) Migrate() error {
	if err := s.db.AutoMigrate(&MessageRecord{}); err != nil {
		return fmt.Errorf("failed to migrate messages: %w", err)
	}
	return nil
}

// Append inserts a message row.
func (s *GormStore) Append(ctx context.Context, roomID domain.RoomID, userID domain.UserID, text string) (*domain.Message, error) {
	text, err := validateAppend(roomID, userID, text)
	if err != nil {
		return nil, err
	}

	record := &MessageRecord{
		RoomID:    int64(roomID),
		UserID:    int64(userID),
		Text:      text,
		CreatedAt: s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	msg := record.toDomain()
	return &msg, nil
}

// Recent returns the newest messages of a room.
func (s *GormStore) Recent(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error) {
	limit, err := normalizeLimit(roomID, limit)
	if err != nil {
		return nil, err
	}

	var records []MessageRecord
	if err := s.db.WithContext(ctx).
		Where("room_id = ?", int64(roomID)).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}

	result := make([]domain.Message, 0, len(records))
	for _, r := range records {
		result = append(result, r.toDomain())
	}
	return result, nil
}

// Ping checks the underlying connection.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
