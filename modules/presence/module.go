package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/groupchat-realtime/config"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Module provides the presence store as request-reply services.
type Module struct {
	cfg    *config.Config
	store  Store
	client *redis.Client
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a presence module; the backend is chosen on Start.
func NewModule(cfg *config.Config) *Module {
	return &Module{cfg: cfg}
}

// NewModuleWithStore creates a presence module around an existing store.
func NewModuleWithStore(store Store) *Module {
	return &Module{store: store}
}

// Name returns the module name.
func (m *Module) Name() string {
	return moduleName
}

// Store returns the active store.
func (m *Module) Store() Store {
	return m.store
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceMarkOnline, json.Unmarshal, json.Marshal, m.handleMarkOnline,
	); err != nil {
		return fmt.Errorf("failed to register mark-online service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceMarkOffline, json.Unmarshal, json.Marshal, m.handleMarkOffline,
	); err != nil {
		return fmt.Errorf("failed to register mark-offline service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceIsOnline, json.Unmarshal, json.Marshal, m.handleIsOnline,
	); err != nil {
		return fmt.Errorf("failed to register is-online service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSnapshot, json.Unmarshal, json.Marshal, m.handleSnapshot,
	); err != nil {
		return fmt.Errorf("failed to register snapshot service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSweep, json.Unmarshal, json.Marshal, m.handleSweep,
	); err != nil {
		return fmt.Errorf("failed to register sweep service: %w", err)
	}

	log.Info().Str("module", moduleName).
		Msg("registered services: services.presence.{mark-online,mark-offline,is-online,snapshot,sweep}")
	return nil
}

// Start creates the configured backend.
func (m *Module) Start(ctx context.Context) error {
	if m.store != nil {
		log.Info().Str("module", moduleName).Msg("module started with injected store")
		return nil
	}

	switch m.cfg.PresenceStore {
	case config.PresenceStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:         m.cfg.RedisAddr,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		m.client = client
		m.store = NewRedisStore(client, m.cfg.PresencePrefix, m.cfg.HeartbeatWindow)
	default:
		m.store = NewMemoryStore(m.cfg.HeartbeatWindow)
	}

	log.Info().Str("module", moduleName).
		Str("backend", m.cfg.PresenceStore).
		Dur("heartbeat_window", m.cfg.HeartbeatWindow).
		Msg("module started")
	return nil
}

// Stop closes the Redis client when one is open.
func (m *Module) Stop(_ context.Context) error {
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			return fmt.Errorf("failed to close Redis connection: %w", err)
		}
	}
	log.Info().Str("module", moduleName).Msg("module stopped")
	return nil
}

// Health pings Redis when it backs the store.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	switch s := m.store.(type) {
	case nil:
		return mono.HealthStatus{Healthy: false, Message: "store not initialized"}
	case *RedisStore:
		if err := s.Ping(ctx); err != nil {
			return mono.HealthStatus{
				Healthy: false,
				Message: fmt.Sprintf("redis ping failed: %v", err),
			}
		}
		return mono.HealthStatus{
			Healthy: true,
			Message: "operational",
			Details: map[string]any{"backend": config.PresenceStoreRedis},
		}
	case *MemoryStore:
		return mono.HealthStatus{
			Healthy: true,
			Message: "operational",
			Details: map[string]any{"backend": config.PresenceStoreMemory, "entries": s.Len()},
		}
	default:
		return mono.HealthStatus{Healthy: true, Message: "operational"}
	}
}
