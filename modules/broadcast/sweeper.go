package broadcast

import (
	"context"
	"sync"
	"time"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
	"github.com/example/groupchat-realtime/modules/presence"
	"github.com/rs/zerolog/log"
)

// Sweeper periodically expires stale presence and notifies the rooms that
// lost someone, so a vanished user drops to offline without any peer frame.
type Sweeper struct {
	store    presence.Store
	notifier Notifier
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper that runs every interval.
func NewSweeper(store presence.Store, notifier Notifier, interval time.Duration) *Sweeper {
	return &Sweeper{store: store, notifier: notifier, interval: interval}
}

// Start launches the sweep loop.
func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SweepOnce(ctx)
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight sweep.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
}

// SweepOnce runs one sweep and returns the rooms that were notified.
func (s *Sweeper) SweepOnce(ctx context.Context) []domain.RoomID {
	rooms, err := s.store.Sweep(ctx)
	if err != nil {
		log.Error().Err(err).Str("module", moduleName).Msg("presence sweep failed")
	}
	for _, roomID := range rooms {
		if err := s.notifier.PresenceChanged(ctx, roomID); err != nil {
			log.Warn().Err(err).Str("module", moduleName).Stringer("room", roomID).
				Msg("failed to notify expired presence")
		}
	}
	if len(rooms) > 0 {
		log.Debug().Str("module", moduleName).Int("rooms", len(rooms)).Msg("expired presence swept")
	}
	return rooms
}
