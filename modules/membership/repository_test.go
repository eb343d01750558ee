package membership

import (
	"context"
	"testing"
	"time"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestRepository creates a Repository on an in-memory SQLite database.
func setupTestRepository(t *testing.T) *Repository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := NewRepository(db)
	require.NoError(t, repo.Migrate())
	return repo
}

func TestRepository_MembersOrderedByJoinTime(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t)

	require.NoError(t, repo.CreateRoom(ctx, 7, "General"))
	alice, err := repo.CreateUser(ctx, "alice", "/img/alice.png")
	require.NoError(t, err)
	bob, err := repo.CreateUser(ctx, "bob", "")
	require.NoError(t, err)
	carol, err := repo.CreateUser(ctx, "carol", "")
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.AddMember(ctx, 7, domain.UserID(carol.ID), base))
	require.NoError(t, repo.AddMember(ctx, 7, domain.UserID(alice.ID), base.Add(time.Minute)))
	require.NoError(t, repo.AddMember(ctx, 7, domain.UserID(bob.ID), base.Add(2*time.Minute)))

	members, err := repo.Members(ctx, 7)
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, []string{"carol", "alice", "bob"}, usernames(members))
	assert.Equal(t, "/img/alice.png", members[1].ProfilePicture)
	assert.Equal(t, domain.DefaultProfilePicture, members[2].ProfilePicture)
}

func TestRepository_AddMemberIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t)

	require.NoError(t, repo.CreateRoom(ctx, 7, "General"))
	user, err := repo.CreateUser(ctx, "alice", "")
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, repo.AddMember(ctx, 7, domain.UserID(user.ID), now))
	require.NoError(t, repo.AddMember(ctx, 7, domain.UserID(user.ID), now))

	members, err := repo.Members(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestRepository_IsMember(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t)

	require.NoError(t, repo.CreateRoom(ctx, 7, "General"))
	require.NoError(t, repo.CreateRoom(ctx, 8, "Other"))
	user, err := repo.CreateUser(ctx, "alice", "")
	require.NoError(t, err)
	require.NoError(t, repo.AddMember(ctx, 7, domain.UserID(user.ID), time.Now()))

	ok, err := repo.IsMember(ctx, 7, domain.UserID(user.ID))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IsMember(ctx, 8, domain.UserID(user.ID))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_Profile(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t)

	user, err := repo.CreateUser(ctx, "dave", "")
	require.NoError(t, err)

	profile, err := repo.Profile(ctx, domain.UserID(user.ID))
	require.NoError(t, err)
	assert.Equal(t, "dave", profile.Username)
	assert.Equal(t, domain.DefaultProfilePicture, profile.ProfilePicture)

	_, err = repo.Profile(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRepository_Seed(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t)

	users, err := repo.Seed(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)

	members, err := repo.Members(ctx, DemoRoomID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, usernames(members))

	again, err := repo.Seed(ctx)
	require.NoError(t, err)
	assert.Nil(t, again, "seed skips a non-empty database")
}

func TestModule_Handlers(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t)
	_, err := repo.Seed(ctx)
	require.NoError(t, err)

	m := &Module{directory: repo}

	members, err := m.handleMembers(ctx, MembersRequest{RoomID: DemoRoomID}, nil)
	require.NoError(t, err)
	assert.Len(t, members.Members, 3)

	isMember, err := m.handleIsMember(ctx, IsMemberRequest{RoomID: DemoRoomID, UserID: members.Members[0].UserID}, nil)
	require.NoError(t, err)
	assert.True(t, isMember.Member)

	profile, err := m.handleProfile(ctx, ProfileRequest{UserID: members.Members[1].UserID}, nil)
	require.NoError(t, err)
	assert.True(t, profile.Found)
	assert.Equal(t, "bob", profile.Profile.Username)

	missing, err := m.handleProfile(ctx, ProfileRequest{UserID: 999}, nil)
	require.NoError(t, err)
	assert.False(t, missing.Found)
}

func usernames(members []domain.Member) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.Username)
	}
	return out
}
