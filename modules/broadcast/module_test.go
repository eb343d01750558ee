package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/example/groupchat-realtime/config"
	"github.com/example/groupchat-realtime/events"
	"github.com/example/groupchat-realtime/modules/presence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastModule_LocalMode(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.BroadcastMode = config.BroadcastLocal

	m := NewModule(cfg)
	store := presence.NewMemoryStore(time.Minute)
	m.SetStores(store, roomSevenDirectory())

	assert.ErrorIs(t, m.PresenceChanged(ctx, 7), errNotStarted)
	assert.False(t, m.Health(ctx).Healthy)

	require.NoError(t, m.Start(ctx))
	t.Cleanup(func() { _ = m.Stop(ctx) })

	a := newFakeSubscriber("a")
	m.GetHub().Join(7, a)

	require.NoError(t, store.MarkOnline(ctx, 7, 1))
	require.NoError(t, m.PresenceChanged(ctx, 7))
	require.NoError(t, m.MessageAppended(ctx, events.MessageAppendedEvent{
		MessageID: 1, RoomID: 7, UserID: 1, Username: "alice", ProfilePicture: "/img/a.png", Text: "hi",
	}))

	frames := a.Frames()
	require.Len(t, frames, 2)
	assert.Contains(t, frames[0], `"online_users"`)
	assert.JSONEq(t, `{"type":"message","message":"hi","user":"alice","user_id":1,"profile_pic":"/img/a.png"}`, frames[1])

	roster, err := m.OnlineUsers(ctx, 7)
	require.NoError(t, err)
	require.Len(t, roster.Users, 3)
	assert.True(t, roster.Users[0].IsOnline)

	health := m.Health(ctx)
	assert.True(t, health.Healthy)
	assert.Equal(t, 1, health.Details["subscribers"])
}

func TestBroadcastModule_StartRequiresStores(t *testing.T) {
	m := NewModule(config.Default())
	assert.Error(t, m.Start(context.Background()))
}

func TestBroadcastModule_StopClosesSubscribers(t *testing.T) {
	ctx := context.Background()
	m := NewModule(config.Default())
	m.SetStores(presence.NewMemoryStore(time.Minute), roomSevenDirectory())
	require.NoError(t, m.Start(ctx))

	a := newFakeSubscriber("a")
	m.GetHub().Join(7, a)

	require.NoError(t, m.Stop(ctx))
	assert.True(t, a.Closed())
	assert.Zero(t, m.GetHub().SubscriberCount())
}
