package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, 60*time.Second, cfg.HeartbeatWindow)
	assert.Equal(t, 20*time.Second, cfg.PingInterval)
	assert.Equal(t, MessageStoreSQLite, cfg.MessageStore)
	assert.Equal(t, PresenceStoreMemory, cfg.PresenceStore)
	assert.Equal(t, BroadcastLocal, cfg.BroadcastMode)
	assert.Equal(t, 50, cfg.HistoryLimit)
	assert.True(t, cfg.HeartbeatRatioOK())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HEARTBEAT_WINDOW", "90s")
	t.Setenv("PING_INTERVAL", "30s")
	t.Setenv("PRESENCE_STORE", "redis")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.HeartbeatWindow)
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
	assert.Equal(t, PresenceStoreRedis, cfg.PresenceStore)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "groupchat.yaml")
	content := "port: 8081\nhistory_limit: 20\nbroadcast_mode: bus\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, 20, cfg.HistoryLimit)
	assert.Equal(t, BroadcastBus, cfg.BroadcastMode)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "ping equal to window",
			mutate:  func(c *Config) { c.PingInterval = c.HeartbeatWindow },
			wantErr: ErrPingNotBelowWindow,
		},
		{
			name:    "ping above window",
			mutate:  func(c *Config) { c.PingInterval = 2 * c.HeartbeatWindow },
			wantErr: ErrPingNotBelowWindow,
		},
		{
			name:    "zero sweep interval",
			mutate:  func(c *Config) { c.SweepInterval = 0 },
			wantErr: ErrNonPositive,
		},
		{
			name:    "zero history limit",
			mutate:  func(c *Config) { c.HistoryLimit = 0 },
			wantErr: ErrNonPositive,
		},
		{
			name:    "zero refresh burst",
			mutate:  func(c *Config) { c.RefreshBurst = 0 },
			wantErr: ErrNonPositive,
		},
		{
			name:    "unknown message store",
			mutate:  func(c *Config) { c.MessageStore = "mongo" },
			wantErr: ErrUnknownBackend,
		},
		{
			name:    "unknown presence store",
			mutate:  func(c *Config) { c.PresenceStore = "etcd" },
			wantErr: ErrUnknownBackend,
		},
		{
			name:    "unknown broadcast mode",
			mutate:  func(c *Config) { c.BroadcastMode = "kafka" },
			wantErr: ErrUnknownBackend,
		},
		{
			name:    "privileged nats port",
			mutate:  func(c *Config) { c.NATSPort = 422 },
			wantErr: ErrPortOutOfRange,
		},
		{
			name: "cluster port out of range",
			mutate: func(c *Config) {
				c.NATSClusterName = "groupchat"
				c.NATSClusterPort = 70000
			},
			wantErr: ErrPortOutOfRange,
		},
		{
			name:   "cluster port ignored when not clustered",
			mutate: func(c *Config) { c.NATSClusterPort = 0 },
		},
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHeartbeatRatioOK(t *testing.T) {
	cfg := Default()
	cfg.HeartbeatWindow = 60 * time.Second
	cfg.PingInterval = 30 * time.Second

	assert.NoError(t, cfg.Validate())
	assert.False(t, cfg.HeartbeatRatioOK())
}

func TestLoad_ClusterSettings(t *testing.T) {
	t.Setenv("BROADCAST_MODE", "bus")
	t.Setenv("NATS_PORT", "4223")
	t.Setenv("NATS_CLUSTER_NAME", "groupchat")
	t.Setenv("NATS_CLUSTER_PORT", "6223")
	t.Setenv("NATS_CLUSTER_ROUTES", "nats://10.0.0.1:6222, ,nats://10.0.0.2:6222")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Clustered())
	assert.Equal(t, 4223, cfg.NATSPort)
	assert.Equal(t, 6223, cfg.NATSClusterPort)
	assert.Equal(t, []string{"nats://10.0.0.1:6222", "nats://10.0.0.2:6222"}, cfg.ClusterRoutes())
}

func TestClusterRoutes_Empty(t *testing.T) {
	cfg := Default()

	assert.False(t, cfg.Clustered())
	assert.Empty(t, cfg.ClusterRoutes())
}
