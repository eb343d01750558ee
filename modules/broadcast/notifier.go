package broadcast

import (
	"context"
	"fmt"
	"time"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
	"github.com/example/groupchat-realtime/events"
	"github.com/go-monolith/mono"
)

// BusNotifier publishes chat events on the shared event bus. Every process
// consuming them fans the frames out to its own subscribers.
type BusNotifier struct {
	bus mono.EventBus
}

var _ Notifier = (*BusNotifier)(nil)

// NewBusNotifier creates a notifier publishing on bus.
func NewBusNotifier(bus mono.EventBus) *BusNotifier {
	return &BusNotifier{bus: bus}
}

func (n *BusNotifier) MessageAppended(_ context.Context, event events.MessageAppendedEvent) error {
	if err := events.MessageAppendedV1.Publish(n.bus, event, nil); err != nil {
		return fmt.Errorf("failed to publish MessageAppended event: %w", err)
	}
	return nil
}

func (n *BusNotifier) PresenceChanged(_ context.Context, roomID domain.RoomID) error {
	event := events.PresenceChangedEvent{RoomID: roomID, Timestamp: time.Now().UTC()}
	if err := events.PresenceChangedV1.Publish(n.bus, event, nil); err != nil {
		return fmt.Errorf("failed to publish PresenceChanged event: %w", err)
	}
	return nil
}
