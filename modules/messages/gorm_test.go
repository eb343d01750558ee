package messages

import (
	"context"
	"strings"
	"testing"
	"time"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestStore creates a GormStore on an in-memory SQLite database.
func setupTestStore(t *testing.T) *GormStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// every pooled connection to :memory: would open a fresh database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := NewGormStore(db)
	require.NoError(t, store.Migrate())
	return store
}

func TestGormStore_AppendThenRecent(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	msg, err := store.Append(ctx, 7, 1, "  hello  ")
	require.NoError(t, err)
	assert.Positive(t, msg.ID)
	assert.Equal(t, domain.RoomID(7), msg.RoomID)
	assert.Equal(t, domain.UserID(1), msg.UserID)
	assert.Equal(t, "hello", msg.Text)
	assert.False(t, msg.CreatedAt.IsZero())

	recent, err := store.Recent(ctx, 7, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, msg.ID, recent[0].ID)
	assert.Equal(t, "hello", recent[0].Text)
}

func TestGormStore_RecentNewestFirstAndBounded(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	var ids []int64
	for _, text := range []string{"one", "two", "three", "four", "five"} {
		msg, err := store.Append(ctx, 7, 1, text)
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	recent, err := store.Recent(ctx, 7, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"five", "four", "three"}, texts(recent))
	assert.Equal(t, ids[4], recent[0].ID)

	all, err := store.Recent(ctx, 7, 100)
	require.NoError(t, err)
	assert.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i-1].ID, all[i].ID)
	}
}

func TestGormStore_SameTimestampOrderedByID(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	for _, text := range []string{"a", "b", "c"} {
		_, err := store.Append(ctx, 7, 1, text)
		require.NoError(t, err)
	}

	recent, err := store.Recent(ctx, 7, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, texts(recent))
}

func TestGormStore_RecentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	for _, text := range []string{"a", "b", "c"} {
		_, err := store.Append(ctx, 7, 2, text)
		require.NoError(t, err)
	}

	first, err := store.Recent(ctx, 7, 2)
	require.NoError(t, err)
	second, err := store.Recent(ctx, 7, 2)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGormStore_RoomsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	_, err := store.Append(ctx, 7, 1, "in seven")
	require.NoError(t, err)
	_, err = store.Append(ctx, 8, 1, "in eight")
	require.NoError(t, err)

	recent, err := store.Recent(ctx, 7, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"in seven"}, texts(recent))

	empty, err := store.Recent(ctx, 9, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGormStore_AppendValidation(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	tests := []struct {
		name    string
		roomID  domain.RoomID
		userID  domain.UserID
		text    string
		wantErr error
	}{
		{"empty text", 7, 1, "", ErrEmptyMessage},
		{"whitespace text", 7, 1, " \t\n", ErrEmptyMessage},
		{"too long", 7, 1, strings.Repeat("x", MaxMessageLength+1), ErrMessageTooLong},
		{"invalid utf8", 7, 1, "bad \xff", ErrMessageInvalid},
		{"invalid room", 0, 1, "hi", domain.ErrInvalidRoomID},
		{"invalid user", 7, -1, "hi", domain.ErrInvalidUserID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Append(ctx, tt.roomID, tt.userID, tt.text)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	recent, err := store.Recent(ctx, 7, 10)
	require.NoError(t, err)
	assert.Empty(t, recent, "rejected messages must not be stored")
}

func TestGormStore_RecentInvalidLimit(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Recent(context.Background(), 7, 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = store.Recent(context.Background(), 7, -3)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestNormalizeLimit(t *testing.T) {
	limit, err := normalizeLimit(7, MaxRecentLimit+100)
	require.NoError(t, err)
	assert.Equal(t, MaxRecentLimit, limit)

	limit, err = normalizeLimit(7, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, limit)
}

func TestModule_Handlers(t *testing.T) {
	ctx := context.Background()
	m := NewModuleWithStore(setupTestStore(t))
	require.NoError(t, m.Start(ctx))

	appended, err := m.handleAppend(ctx, AppendRequest{RoomID: 7, UserID: 3, Text: "hi"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", appended.Message.Text)

	recent, err := m.handleRecent(ctx, RecentRequest{RoomID: 7, Limit: 5}, nil)
	require.NoError(t, err)
	require.Len(t, recent.Messages, 1)
	assert.Equal(t, appended.Message.ID, recent.Messages[0].ID)

	_, err = m.handleAppend(ctx, AppendRequest{RoomID: 7, UserID: 3, Text: ""}, nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	health := m.Health(ctx)
	assert.True(t, health.Healthy)
}

func texts(msgs []domain.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Text)
	}
	return out
}
