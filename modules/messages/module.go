package messages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/groupchat-realtime/config"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Module provides the message store as request-reply services.
type Module struct {
	cfg   *config.Config
	store Store
	db    *gorm.DB
	pool  *pgxpool.Pool
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a messages module; the backend is opened on Start.
func NewModule(cfg *config.Config) *Module {
	return &Module{cfg: cfg}
}

// NewModuleWithStore creates a messages module around an existing store.
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
		container, ServiceAppend, json.Unmarshal, json.Marshal, m.handleAppend,
	); err != nil {
		return fmt.Errorf("failed to register append service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRecent, json.Unmarshal, json.Marshal, m.handleRecent,
	); err != nil {
		return fmt.Errorf("failed to register recent service: %w", err)
	}

	log.Info().Str("module", moduleName).Msg("registered services: services.messages.{append,recent}")
	return nil
}

// Start opens the configured backend and creates its schema.
func (m *Module) Start(ctx context.Context) error {
	if m.store != nil {
		log.Info().Str("module", moduleName).Msg("module started with injected store")
		return nil
	}

	switch m.cfg.MessageStore {
	case config.MessageStorePostgres:
		pool, err := pgxpool.New(ctx, m.cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}
		store := NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return err
		}
		m.pool = pool
		m.store = store

	default:
		logLevel := logger.Silent
		if m.cfg.LogLevel == "debug" {
			logLevel = logger.Info
		}
		db, err := gorm.Open(sqlite.Open(m.cfg.SQLiteDSN()), &gorm.Config{
			Logger: logger.Default.LogMode(logLevel),
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		store := NewGormStore(db)
		if err := store.Migrate(); err != nil {
			return err
		}
		m.db = db
		m.store = store
	}

	log.Info().Str("module", moduleName).Str("backend", m.cfg.MessageStore).Msg("module started")
	return nil
}

// Stop closes the backend connection.
func (m *Module) Stop(_ context.Context) error {
	if m.pool != nil {
		m.pool.Close()
	}
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err != nil {
			return fmt.Errorf("failed to get sql.DB: %w", err)
		}
		if err := sqlDB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	log.Info().Str("module", moduleName).Msg("module stopped")
	return nil
}

// Health pings the backend.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.store == nil {
		return mono.HealthStatus{Healthy: false, Message: "store not initialized"}
	}
	if p, ok := m.store.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return mono.HealthStatus{
				Healthy: false,
				Message: fmt.Sprintf("database ping failed: %v", err),
			}
		}
	}
	backend := config.MessageStoreSQLite
	if m.pool != nil {
		backend = config.MessageStorePostgres
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"backend": backend},
	}
}
