package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
	"github.com/example/groupchat-realtime/events"
	"github.com/example/groupchat-realtime/modules/membership"
	"github.com/example/groupchat-realtime/modules/presence"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	defaultDispatchTimeout = 5 * time.Second
	roomLockStripes        = 64
)

// Notifier is told about durable writes so peers can be updated.
type Notifier interface {
	MessageAppended(ctx context.Context, event events.MessageAppendedEvent) error
	PresenceChanged(ctx context.Context, roomID domain.RoomID) error
}

// Dispatcher turns store writes into frames published through the Hub.
type Dispatcher struct {
	hub      *Hub
	presence presence.Store
	members  membership.Directory
	timeout  time.Duration

	// member lists are read-only here, so concurrent lookups for one room share a result
	memberLookups singleflight.Group

	// rooms hash onto a fixed set of locks
	roomLocks [roomLockStripes]sync.Mutex
}

var _ Notifier = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher. timeout bounds each store read.
func NewDispatcher(hub *Hub, presenceStore presence.Store, members membership.Directory, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &Dispatcher{
		hub:      hub,
		presence: presenceStore,
		members:  members,
		timeout:  timeout,
	}
}

// MessageAppended publishes the message frame to the message's room.
func (d *Dispatcher) MessageAppended(_ context.Context, event events.MessageAppendedEvent) error {
	frame, err := Encode(NewMessageFrame(event))
	if err != nil {
		return fmt.Errorf("failed to encode message frame: %w", err)
	}
	result := d.hub.Publish(event.RoomID, frame)
	log.Debug().Str("module", moduleName).
		Stringer("room", event.RoomID).
		Int64("message_id", event.MessageID).
		Int("delivered", result.Delivered).
		Int("dropped", result.Dropped).
		Msg("message broadcast")
	return nil
}

// PresenceChanged publishes a fresh online_users snapshot to the room. On a
// failed snapshot nothing is sent and peers keep the last roster they saw.
func (d *Dispatcher) PresenceChanged(ctx context.Context, roomID domain.RoomID) error {
	// serialize per room so snapshots reach subscribers in the order they were taken
	lock := d.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	snapshot, err := d.OnlineUsers(ctx, roomID)
	if err != nil {
		log.Error().Err(err).Str("module", moduleName).Stringer("room", roomID).
			Msg("presence snapshot failed, broadcast skipped")
		return err
	}
	frame, err := Encode(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode online_users frame: %w", err)
	}
	result := d.hub.Publish(roomID, frame)
	log.Debug().Str("module", moduleName).
		Stringer("room", roomID).
		Int("users", len(snapshot.Users)).
		Int("delivered", result.Delivered).
		Msg("presence broadcast")
	return nil
}

// OnlineUsers builds the room roster: every member with their online flag.
func (d *Dispatcher) OnlineUsers(ctx context.Context, roomID domain.RoomID) (OnlineUsersFrame, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	members, err := d.roomMembers(ctx, roomID)
	if err != nil {
		return OnlineUsersFrame{}, err
	}
	ids := make([]domain.UserID, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	statuses, err := d.presence.Snapshot(ctx, roomID, ids)
	if err != nil {
		return OnlineUsersFrame{}, fmt.Errorf("failed to read presence: %w", err)
	}
	return NewOnlineUsersFrame(members, statuses), nil
}

// roomMembers shares one lookup between concurrent callers. The lookup runs
// on its own deadline so one caller giving up does not fail the others.
func (d *Dispatcher) roomMembers(ctx context.Context, roomID domain.RoomID) ([]domain.Member, error) {
	ch := d.memberLookups.DoChan(roomID.String(), func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		return d.members.Members(lookupCtx, roomID)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to load members: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("failed to load members: %w", res.Err)
		}
		return res.Val.([]domain.Member), nil
	}
}

func (d *Dispatcher) roomLock(roomID domain.RoomID) *sync.Mutex {
	return &d.roomLocks[uint64(roomID)%roomLockStripes]
}
