package membership

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/groupchat-realtime/config"
	domain "github.com/example/groupchat-realtime/domain/groupchat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Module provides the membership directory as request-reply services and
// owns the token issuer and resolver.
type Module struct {
	cfg       *config.Config
	db        *gorm.DB
	directory Directory
	issuer    *TokenIssuer
	resolver  *IdentityResolver
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a membership module backed by the configured SQLite file.
func NewModule(cfg *config.Config) *Module {
	identity := IdentityConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}
	return &Module{
		cfg:      cfg,
		issuer:   NewTokenIssuer(identity),
		resolver: NewIdentityResolver(identity),
	}
}

// NewModuleWithDirectory creates a membership module around an existing directory.
func NewModuleWithDirectory(cfg *config.Config, directory Directory) *Module {
	m := NewModule(cfg)
	m.directory = directory
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return moduleName
}

// Directory returns the active directory.
func (m *Module) Directory() Directory {
	return m.directory
}

// Resolver returns the identity resolver used by the gateway.
func (m *Module) Resolver() *IdentityResolver {
	return m.resolver
}

// Issuer returns the token issuer.
func (m *Module) Issuer() *TokenIssuer {
	return m.issuer
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceMembers, json.Unmarshal, json.Marshal, m.handleMembers,
	); err != nil {
		return fmt.Errorf("failed to register members service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceIsMember, json.Unmarshal, json.Marshal, m.handleIsMember,
	); err != nil {
		return fmt.Errorf("failed to register is-member service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceProfile, json.Unmarshal, json.Marshal, m.handleProfile,
	); err != nil {
		return fmt.Errorf("failed to register profile service: %w", err)
	}

	log.Info().Str("module", moduleName).Msg("registered services: services.membership.{members,is-member,profile}")
	return nil
}

// Start opens the database, migrates it and seeds the demo room when asked.
func (m *Module) Start(ctx context.Context) error {
	if m.directory != nil {
		log.Info().Str("module", moduleName).Msg("module started with injected directory")
		return nil
	}

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

	repo := NewRepository(db)
	if err := repo.Migrate(); err != nil {
		return err
	}
	m.db = db
	m.directory = repo

	if m.cfg.MembershipSeed {
		if err := m.seed(ctx, repo); err != nil {
			return err
		}
	}

	log.Info().Str("module", moduleName).Str("path", m.cfg.DBPath).Msg("module started")
	return nil
}

// seed creates the demo room and logs a token per demo user.
func (m *Module) seed(ctx context.Context, repo *Repository) error {
	users, err := repo.Seed(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		token, err := m.issuer.Issue(domain.Identity{UserID: domain.UserID(u.ID), Username: u.Username})
		if err != nil {
			return fmt.Errorf("failed to issue demo token: %w", err)
		}
		log.Info().Str("module", moduleName).
			Str("username", u.Username).
			Int64("user_id", u.ID).
			Str("token", token).
			Msgf("seeded demo user in room %s", DemoRoomID)
	}
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	log.Info().Str("module", moduleName).Msg("module stopped")
	return nil
}

// Health pings the database.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.directory == nil {
		return mono.HealthStatus{Healthy: false, Message: "directory not initialized"}
	}
	if repo, ok := m.directory.(*Repository); ok {
		if err := repo.Ping(ctx); err != nil {
			return mono.HealthStatus{
				Healthy: false,
				Message: fmt.Sprintf("database ping failed: %v", err),
			}
		}
	}
	return mono.HealthStatus{Healthy: true, Message: "operational"}
}
