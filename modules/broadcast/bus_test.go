package broadcast

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/example/groupchat-realtime/config"
	"github.com/example/groupchat-realtime/events"
	"github.com/example/groupchat-realtime/modules/membership"
	"github.com/example/groupchat-realtime/modules/presence"
	"github.com/go-monolith/mono"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

// startBusNode runs a bus-mode broadcast module inside its own mono
// application, clustered over clusterPort.
func startBusNode(t *testing.T, clusterPort int, routes []string) *BroadcastModule {
	t.Helper()
	cfg := config.Default()
	cfg.BroadcastMode = config.BroadcastBus

	app, err := mono.NewMonoApplication(
		mono.WithLogLevel(mono.LogLevelError),
		mono.WithNATSHost("127.0.0.1"),
		mono.WithNATSPort(freePort(t)),
		mono.WithNATSClustering("groupchat-test", "127.0.0.1", clusterPort, routes),
	)
	require.NoError(t, err)

	m := NewModule(cfg)
	require.NoError(t, app.Register(presence.NewModuleWithStore(presence.NewMemoryStore(time.Minute))))
	require.NoError(t, app.Register(membership.NewModuleWithDirectory(cfg, roomSevenDirectory())))
	require.NoError(t, app.Register(m))

	require.NoError(t, app.Start(context.Background()))
	t.Cleanup(func() {
		_ = app.Stop(context.Background())
	})
	return m
}

func TestBusMode_DeliversAcrossProcesses(t *testing.T) {
	if testing.Short() {
		t.Skip("starts two embedded NATS servers")
	}
	ctx := context.Background()

	seedPort := freePort(t)
	seed := startBusNode(t, seedPort, nil)
	peer := startBusNode(t, freePort(t), []string{fmt.Sprintf("nats://127.0.0.1:%d", seedPort)})
	require.NotEqual(t, seed.queueGroup, peer.queueGroup)

	local := newFakeSubscriber("local")
	remote := newFakeSubscriber("remote")
	seed.GetHub().Join(7, local)
	peer.GetHub().Join(7, remote)

	event := events.MessageAppendedEvent{
		MessageID: 1, RoomID: 7, UserID: 1, Username: "alice", ProfilePicture: "/img/a.png", Text: "over the wire",
	}
	want := `{"type":"message","message":"over the wire","user":"alice","user_id":1,"profile_pic":"/img/a.png"}`

	// the route between the two servers comes up asynchronously
	require.Eventually(t, func() bool {
		if err := seed.MessageAppended(ctx, event); err != nil {
			return false
		}
		return len(remote.Frames()) > 0
	}, 10*time.Second, 200*time.Millisecond)

	assert.JSONEq(t, want, remote.Frames()[0])
	require.Eventually(t, func() bool {
		return len(local.Frames()) > 0
	}, 2*time.Second, 20*time.Millisecond)
	assert.JSONEq(t, want, local.Frames()[0])
}

func TestBusMode_SingleProcess(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}
	ctx := context.Background()
	node := startBusNode(t, freePort(t), nil)

	sub := newFakeSubscriber("a")
	node.GetHub().Join(7, sub)

	require.NoError(t, node.PresenceChanged(ctx, 7))
	require.Eventually(t, func() bool {
		return len(sub.Frames()) == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Contains(t, sub.Frames()[0], `"online_users"`)
}
