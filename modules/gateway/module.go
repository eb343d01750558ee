// Package gateway accepts WebSocket connections from room members and turns
// their frames into store writes and broadcasts.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/example/groupchat-realtime/config"
	"github.com/example/groupchat-realtime/modules/broadcast"
	"github.com/example/groupchat-realtime/modules/membership"
	"github.com/example/groupchat-realtime/modules/messages"
	"github.com/example/groupchat-realtime/modules/presence"
	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

const moduleName = "gateway"

// GatewayModule serves the HTTP and WebSocket surface.
type GatewayModule struct {
	cfg       *config.Config
	app       *fiber.App
	gateway   *Gateway
	messages  messages.Store
	presence  presence.Store
	members   membership.Directory
	resolver  IdentityResolver
	broadcast *broadcast.BroadcastModule
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*GatewayModule)(nil)
	_ mono.DependentModule       = (*GatewayModule)(nil)
	_ mono.HealthCheckableModule = (*GatewayModule)(nil)
)

// NewModule creates a new GatewayModule.
func NewModule(cfg *config.Config) *GatewayModule {
	return &GatewayModule{cfg: cfg}
}

// Name returns the module name.
func (m *GatewayModule) Name() string {
	return moduleName
}

// Dependencies returns the list of module dependencies.
func (m *GatewayModule) Dependencies() []string {
	return []string{"messages", "presence", "membership"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *GatewayModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "messages":
		m.messages = messages.NewAdapter(container)
	case "presence":
		m.presence = presence.NewAdapter(container)
	case "membership":
		m.members = membership.NewAdapter(container)
	}
}

// SetBroadcast sets the broadcast module (called from main.go).
func (m *GatewayModule) SetBroadcast(b *broadcast.BroadcastModule) {
	m.broadcast = b
}

// SetResolver sets the identity resolver (called from main.go).
func (m *GatewayModule) SetResolver(resolver IdentityResolver) {
	m.resolver = resolver
}

// Start builds the gateway and starts the Fiber server.
func (m *GatewayModule) Start(_ context.Context) error {
	switch {
	case m.messages == nil:
		return fmt.Errorf("messages dependency not set")
	case m.presence == nil:
		return fmt.Errorf("presence dependency not set")
	case m.members == nil:
		return fmt.Errorf("membership dependency not set")
	case m.resolver == nil:
		return fmt.Errorf("identity resolver not set")
	case m.broadcast == nil:
		return fmt.Errorf("broadcast module not set")
	}

	hub := m.broadcast.GetHub()

	m.gateway = NewGateway(m.messages, m.presence, m.members, hub, m.broadcast, OptionsFromConfig(m.cfg))
	m.app = newApp(&server{
		gw:        m.gateway,
		resolver:  m.resolver,
		members:   m.members,
		snapshots: m.broadcast,
		origins:   m.cfg.CORSAllowedOrigins,
		health: func() map[string]any {
			return map[string]any{
				"rooms":       hub.RoomCount(),
				"connections": hub.SubscriberCount(),
			}
		},
	})

	addr := fmt.Sprintf(":%d", m.cfg.Port)

	// Start server in goroutine with startup error detection
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(addr); err != nil {
			errCh <- err
		}
	}()

	// Wait briefly to catch immediate startup errors
	select {
	case err := <-errCh:
		return fmt.Errorf("gateway server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	log.Info().Str("module", moduleName).Str("addr", addr).Msg("module started")
	return nil
}

// Stop gracefully shuts down the server.
func (m *GatewayModule) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	if err := m.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	log.Info().Str("module", moduleName).Msg("module stopped")
	return nil
}

// Health returns the health status.
func (m *GatewayModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"port": m.cfg.Port,
		},
	}
}
