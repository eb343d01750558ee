package presence

import (
	"context"
	"os"
	"testing"
	"time"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedisAddr() string {
	if addr := os.Getenv("TEST_REDIS_ADDR"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// setupRedisStore connects to Redis or skips the test. Keys live under a
// per-test prefix and are removed afterwards.
func setupRedisStore(t *testing.T, clock *fakeClock) *RedisStore {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: testRedisAddr()})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available at %s: %v", testRedisAddr(), err)
	}

	prefix := "test:presence:" + t.Name() + ":"
	cleanupKeys(ctx, client, prefix+"*")
	t.Cleanup(func() {
		cleanupKeys(context.Background(), client, prefix+"*")
		_ = client.Close()
	})

	store := NewRedisStore(client, prefix, 60*time.Second)
	store.now = clock.Now
	return store
}

func cleanupKeys(ctx context.Context, client *redis.Client, pattern string) {
	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

func TestRedisStore_HeartbeatWindow(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := setupRedisStore(t, clock)

	require.NoError(t, store.MarkOnline(ctx, 7, 1))

	clock.Advance(60 * time.Second)
	online, err := store.IsOnline(ctx, 7, 1)
	require.NoError(t, err)
	assert.True(t, online)

	clock.Advance(time.Second)
	online, err = store.IsOnline(ctx, 7, 1)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestRedisStore_MarkOffline(t *testing.T) {
	ctx := context.Background()
	store := setupRedisStore(t, newFakeClock())

	require.NoError(t, store.MarkOnline(ctx, 7, 1))
	require.NoError(t, store.MarkOffline(ctx, 7, 1))
	require.NoError(t, store.MarkOffline(ctx, 7, 1))

	online, err := store.IsOnline(ctx, 7, 1)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestRedisStore_Snapshot(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := setupRedisStore(t, clock)

	require.NoError(t, store.MarkOnline(ctx, 7, 1))
	require.NoError(t, store.MarkOnline(ctx, 7, 2))

	snapshot, err := store.Snapshot(ctx, 7, []domain.UserID{2, 3, 1})
	require.NoError(t, err)
	assert.Equal(t, []domain.PresenceStatus{
		{UserID: 2, IsOnline: true},
		{UserID: 3, IsOnline: false},
		{UserID: 1, IsOnline: true},
	}, snapshot)
}

func TestRedisStore_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := setupRedisStore(t, clock)

	require.NoError(t, store.MarkOnline(ctx, 7, 1))
	require.NoError(t, store.MarkOnline(ctx, 8, 2))
	clock.Advance(30 * time.Second)
	require.NoError(t, store.MarkOnline(ctx, 8, 3))
	clock.Advance(31 * time.Second)

	rooms, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.RoomID{7, 8}, rooms)

	online, err := store.IsOnline(ctx, 8, 3)
	require.NoError(t, err)
	assert.True(t, online)

	indexed, err := store.client.SMembers(ctx, store.indexKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"8"}, indexed, "empty rooms leave the index")
}
