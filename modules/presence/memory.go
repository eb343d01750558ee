package presence

import (
	"context"
	"slices"
	"sync"
	"time"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
)

type entryKey struct {
	room domain.RoomID
	user domain.UserID
}

// MemoryStore keeps presence in process memory. Expired entries read as
// offline immediately and are removed by Sweep.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[entryKey]time.Time // last refreshed
	window  time.Duration
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store with the given heartbeat window.
func NewMemoryStore(window time.Duration) *MemoryStore {
	return NewMemoryStoreWithClock(window, time.Now)
}

// NewMemoryStoreWithClock creates a store that reads time from now.
func NewMemoryStoreWithClock(window time.Duration, now func() time.Time) *MemoryStore {
	if window <= 0 {
		window = DefaultHeartbeatWindow
	}
	return &MemoryStore{
		entries: make(map[entryKey]time.Time),
		window:  window,
		now:     now,
	}
}

func (s *MemoryStore) MarkOnline(_ context.Context, roomID domain.RoomID, userID domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entryKey{roomID, userID}] = s.now()
	return nil
}

func (s *MemoryStore) MarkOffline(_ context.Context, roomID domain.RoomID, userID domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, entryKey{roomID, userID})
	return nil
}

func (s *MemoryStore) IsOnline(_ context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.onlineLocked(roomID, userID, s.now()), nil
}

func (s *MemoryStore) Snapshot(_ context.Context, roomID domain.RoomID, userIDs []domain.UserID) ([]domain.PresenceStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	result := make([]domain.PresenceStatus, 0, len(userIDs))
	for _, id := range userIDs {
		result = append(result, domain.PresenceStatus{
			UserID:   id,
			IsOnline: s.onlineLocked(roomID, id, now),
		})
	}
	return result, nil
}

func (s *MemoryStore) Sweep(_ context.Context) ([]domain.RoomID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var rooms []domain.RoomID
	for key, last := range s.entries {
		if now.Sub(last) <= s.window {
			continue
		}
		delete(s.entries, key)
		if !slices.Contains(rooms, key.room) {
			rooms = append(rooms, key.room)
		}
	}
	slices.Sort(rooms)
	return rooms, nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) onlineLocked(roomID domain.RoomID, userID domain.UserID, now time.Time) bool {
	last, ok := s.entries[entryKey{roomID, userID}]
	return ok && now.Sub(last) <= s.window
}
