// Package broadcast fans chat and presence events out to the live
// connections of a room.
package broadcast

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/groupchat-realtime/config"
	domain "github.com/example/groupchat-realtime/domain/groupchat"
	"github.com/example/groupchat-realtime/events"
	"github.com/example/groupchat-realtime/modules/membership"
	"github.com/example/groupchat-realtime/modules/presence"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const moduleName = "broadcast"

var errNotStarted = errors.New("broadcast module not started")

// BroadcastModule owns the Hub, the Dispatcher and the presence sweeper.
// In bus mode it also consumes chat events so that every process delivers
// to its own subscribers.
type BroadcastModule struct {
	cfg *config.Config
	// queueGroup is unique per process so every process receives each event.
	queueGroup string
	hub        *Hub
	eventBus   mono.EventBus
	presence   presence.Store
	members    membership.Directory
	dispatcher *Dispatcher
	notifier   Notifier
	sweeper    *Sweeper
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*BroadcastModule)(nil)
	_ mono.DependentModule       = (*BroadcastModule)(nil)
	_ mono.EventBusAwareModule   = (*BroadcastModule)(nil)
	_ mono.EventEmitterModule    = (*BroadcastModule)(nil)
	_ mono.EventConsumerModule   = (*BroadcastModule)(nil)
	_ mono.HealthCheckableModule = (*BroadcastModule)(nil)
	_ Notifier                   = (*BroadcastModule)(nil)
)

// NewModule creates a new BroadcastModule.
func NewModule(cfg *config.Config) *BroadcastModule {
	return &BroadcastModule{
		cfg:        cfg,
		queueGroup: moduleName + "-" + uuid.NewString(),
		hub:        NewHub(),
	}
}

// Name returns the module name.
func (m *BroadcastModule) Name() string {
	return moduleName
}

// Dependencies returns the list of module dependencies.
func (m *BroadcastModule) Dependencies() []string {
	return []string{"presence", "membership"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *BroadcastModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "presence":
		m.presence = presence.NewAdapter(container)
	case "membership":
		m.members = membership.NewAdapter(container)
	}
}

// SetStores replaces the service adapters with direct stores.
func (m *BroadcastModule) SetStores(presenceStore presence.Store, members membership.Directory) {
	m.presence = presenceStore
	m.members = members
}

// SetEventBus receives the EventBus from the framework.
func (m *BroadcastModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *BroadcastModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageAppendedV1.ToBase(),
		events.PresenceChangedV1.ToBase(),
	}
}

// RegisterEventConsumers registers event handlers.
func (m *BroadcastModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageAppendedV1, m.handleMessageAppended, m, m.queueGroup,
	); err != nil {
		return fmt.Errorf("failed to register MessageAppended consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.PresenceChangedV1, m.handlePresenceChanged, m, m.queueGroup,
	); err != nil {
		return fmt.Errorf("failed to register PresenceChanged consumer: %w", err)
	}

	log.Info().Str("module", moduleName).Str("queue_group", m.queueGroup).
		Msg("registered event consumers: MessageAppended, PresenceChanged")
	return nil
}

// Start builds the dispatcher, picks the notifier and starts the sweeper.
func (m *BroadcastModule) Start(_ context.Context) error {
	if m.presence == nil {
		return fmt.Errorf("presence dependency not set")
	}
	if m.members == nil {
		return fmt.Errorf("membership dependency not set")
	}

	m.dispatcher = NewDispatcher(m.hub, m.presence, m.members, m.cfg.StoreTimeout)

	switch m.cfg.BroadcastMode {
	case config.BroadcastBus:
		if m.eventBus == nil {
			return fmt.Errorf("event bus not set")
		}
		m.notifier = NewBusNotifier(m.eventBus)
	default:
		m.notifier = m.dispatcher
	}

	m.sweeper = NewSweeper(m.presence, m.notifier, m.cfg.SweepInterval)
	m.sweeper.Start()

	log.Info().Str("module", moduleName).
		Str("mode", m.cfg.BroadcastMode).
		Dur("sweep_interval", m.cfg.SweepInterval).
		Msg("module started")
	return nil
}

// Stop halts the sweeper and closes every connection.
func (m *BroadcastModule) Stop(_ context.Context) error {
	if m.sweeper != nil {
		m.sweeper.Stop()
	}
	subscribers := m.hub.SubscriberCount()
	m.hub.Close()
	log.Info().Str("module", moduleName).Int("subscribers", subscribers).Msg("module stopped")
	return nil
}

// Health returns the health status.
func (m *BroadcastModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.dispatcher != nil,
		Message: "operational",
		Details: map[string]any{
			"mode":        m.cfg.BroadcastMode,
			"rooms":       m.hub.RoomCount(),
			"subscribers": m.hub.SubscriberCount(),
		},
	}
}

func (m *BroadcastModule) handleMessageAppended(ctx context.Context, event events.MessageAppendedEvent, _ *mono.Msg) error {
	if m.dispatcher == nil {
		return nil
	}
	return m.dispatcher.MessageAppended(ctx, event)
}

// handlePresenceChanged never returns the snapshot error: a redelivered
// event would only repeat a stale roster.
func (m *BroadcastModule) handlePresenceChanged(ctx context.Context, event events.PresenceChangedEvent, _ *mono.Msg) error {
	if m.dispatcher == nil {
		return nil
	}
	_ = m.dispatcher.PresenceChanged(ctx, event.RoomID)
	return nil
}

// GetHub returns the group channel registry.
func (m *BroadcastModule) GetHub() *Hub {
	return m.hub
}

// MessageAppended forwards to the notifier chosen at Start.
func (m *BroadcastModule) MessageAppended(ctx context.Context, event events.MessageAppendedEvent) error {
	if m.notifier == nil {
		return errNotStarted
	}
	return m.notifier.MessageAppended(ctx, event)
}

// PresenceChanged forwards to the notifier chosen at Start.
func (m *BroadcastModule) PresenceChanged(ctx context.Context, roomID domain.RoomID) error {
	if m.notifier == nil {
		return errNotStarted
	}
	return m.notifier.PresenceChanged(ctx, roomID)
}

// OnlineUsers builds the current roster of a room.
func (m *BroadcastModule) OnlineUsers(ctx context.Context, roomID domain.RoomID) (OnlineUsersFrame, error) {
	if m.dispatcher == nil {
		return OnlineUsersFrame{}, errNotStarted
	}
	return m.dispatcher.OnlineUsers(ctx, roomID)
}
