package broadcast

import (
	"sync"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
	"github.com/rs/zerolog/log"
)

// Subscriber is one live connection able to receive frames.
type Subscriber interface {
	ID() string
	// Send queues a frame for delivery. An error means the subscriber can
	// no longer be reached.
	Send(frame []byte) error
	Close() error
}

// PublishResult reports the outcome of one Publish call.
type PublishResult struct {
	Delivered int
	Dropped   int
}

// Hub is the group channel registry: room -> live subscribers. Delivery is
// best-effort and at-most-once; frames never cross rooms.
type Hub struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]map[string]Subscriber
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[domain.RoomID]map[string]Subscriber),
	}
}

// Join adds the subscriber to the room. Joining twice is a no-op.
func (h *Hub) Join(roomID domain.RoomID, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.rooms[roomID]
	if !ok {
		subs = make(map[string]Subscriber)
		h.rooms[roomID] = subs
	}
	if _, exists := subs[sub.ID()]; exists {
		return
	}
	subs[sub.ID()] = sub
	log.Debug().Str("module", moduleName).
		Str("subscriber", sub.ID()).
		Stringer("room", roomID).
		Int("room_size", len(subs)).
		Msg("subscriber joined")
}

// Leave removes the subscriber from the room and frees an empty room.
// Leaving a room one is not in is a no-op.
func (h *Hub) Leave(roomID domain.RoomID, subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(roomID, subscriberID)
}

// Publish sends frame to every subscriber of the room. A subscriber whose
// Send fails is removed from the room and closed.
func (h *Hub) Publish(roomID domain.RoomID, frame []byte) PublishResult {
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.rooms[roomID]))
	for _, sub := range h.rooms[roomID] {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	var result PublishResult
	var failed []Subscriber
	for _, sub := range targets {
		if err := sub.Send(frame); err != nil {
			log.Warn().Err(err).Str("module", moduleName).
				Str("subscriber", sub.ID()).
				Stringer("room", roomID).
				Msg("dropping unreachable subscriber")
			failed = append(failed, sub)
			continue
		}
		result.Delivered++
	}

	if len(failed) > 0 {
		h.mu.Lock()
		for _, sub := range failed {
			// the entry may have been replaced since the snapshot
			if current, ok := h.rooms[roomID][sub.ID()]; ok && current == sub {
				h.removeLocked(roomID, sub.ID())
			}
		}
		h.mu.Unlock()
		for _, sub := range failed {
			_ = sub.Close()
		}
		result.Dropped = len(failed)
	}
	return result
}

// Close closes every subscriber and empties the registry.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []Subscriber
	for _, subs := range h.rooms {
		for _, sub := range subs {
			all = append(all, sub)
		}
	}
	h.rooms = make(map[domain.RoomID]map[string]Subscriber)
	h.mu.Unlock()

	for _, sub := range all {
		_ = sub.Close()
	}
	log.Info().Str("module", moduleName).Int("closed", len(all)).Msg("hub closed")
}

// Subscribers returns a snapshot of the room's subscribers.
func (h *Hub) Subscribers(roomID domain.RoomID) []Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	subs := make([]Subscriber, 0, len(h.rooms[roomID]))
	for _, sub := range h.rooms[roomID] {
		subs = append(subs, sub)
	}
	return subs
}

// SubscriberCount returns the number of subscriptions across all rooms.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subs := range h.rooms {
		n += len(subs)
	}
	return n
}

// RoomCount returns the number of rooms with at least one subscriber.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// RoomSubscriberCount returns the number of subscribers in a room.
func (h *Hub) RoomSubscriberCount(roomID domain.RoomID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) removeLocked(roomID domain.RoomID, subscriberID string) {
	subs, ok := h.rooms[roomID]
	if !ok {
		return
	}
	if _, exists := subs[subscriberID]; !exists {
		return
	}
	delete(subs, subscriberID)
	if len(subs) == 0 {
		delete(h.rooms, roomID)
	}
	log.Debug().Str("module", moduleName).
		Str("subscriber", subscriberID).
		Stringer("room", roomID).
		Msg("subscriber left")
}
