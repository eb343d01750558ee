package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/example/groupchat-realtime/config"
	"github.com/example/groupchat-realtime/modules/broadcast"
	"github.com/example/groupchat-realtime/modules/gateway"
	"github.com/example/groupchat-realtime/modules/membership"
	"github.com/example/groupchat-realtime/modules/messages"
	"github.com/example/groupchat-realtime/modules/presence"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg)

	log.Info().Msg("=== Group Chat Real-time Layer ===")
	if !cfg.HeartbeatRatioOK() {
		log.Warn().
			Dur("heartbeat_window", cfg.HeartbeatWindow).
			Dur("ping_interval", cfg.PingInterval).
			Msg("heartbeat window is less than 3 ping intervals, users may flap offline")
	}

	if cfg.BroadcastMode == config.BroadcastBus && !cfg.Clustered() {
		log.Warn().Msg("broadcast_mode=bus without nats_cluster_name, events stay in this process")
	}

	// Create mono application
	app, err := mono.NewMonoApplication(frameworkOptions(cfg)...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create application")
	}

	// Create modules
	membershipModule := membership.NewModule(cfg)
	presenceModule := presence.NewModule(cfg)
	messagesModule := messages.NewModule(cfg)
	broadcastModule := broadcast.NewModule(cfg)
	gatewayModule := gateway.NewModule(cfg)

	// The hub and the resolver are not exposed via ServiceContainer
	gatewayModule.SetBroadcast(broadcastModule)
	gatewayModule.SetResolver(membershipModule.Resolver())

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - membership: users, rooms and tokens (ServiceProviderModule)
	// - presence: heartbeat TTL store (ServiceProviderModule)
	// - messages: durable message log (ServiceProviderModule)
	// - broadcast: hub, dispatcher and sweeper (EventEmitter + EventConsumer)
	// - gateway: Fiber HTTP/WebSocket server
	app.Register(membershipModule)
	app.Register(presenceModule)
	app.Register(messagesModule)
	app.Register(broadcastModule)
	app.Register(gatewayModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to start application")
	}

	log.Info().
		Int("port", cfg.Port).
		Str("message_store", cfg.MessageStore).
		Str("presence_store", cfg.PresenceStore).
		Str("broadcast_mode", cfg.BroadcastMode).
		Str("nats_cluster", cfg.NATSClusterName).
		Msg("application started, connect to ws://localhost:<port>/ws/rooms/<roomId>?token=<jwt>")

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Info().Msg("graceful shutdown initiated")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Info().Int("exit_code", exitCode).Msg("application exited")
	os.Exit(exitCode)
}

// frameworkOptions configures the embedded NATS server. With a cluster name
// the server routes to its peers, so bus events reach every process.
func frameworkOptions(cfg *config.Config) []mono.MonoFrameworkOption {
	opts := []mono.MonoFrameworkOption{
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
		mono.WithNATSHost(cfg.NATSHost),
		mono.WithNATSPort(cfg.NATSPort),
	}
	if cfg.Clustered() {
		opts = append(opts, mono.WithNATSClustering(
			cfg.NATSClusterName, cfg.NATSClusterHost, cfg.NATSClusterPort, cfg.ClusterRoutes(),
		))
	}
	return opts
}

func setupLogging(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if strings.EqualFold(cfg.LogFormat, "console") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
