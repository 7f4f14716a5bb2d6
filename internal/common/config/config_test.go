package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_Watcher(t *testing.T) {
	path := writeConfig(t, `
address: "http://localhost:3000/?session_id=abc"
server:
  base_url: "http://localhost:8000"
  ws_url: "ws://localhost:8000/ws"
channel:
  heartbeat_interval: 10s
  reconnect_delay: 2s
  max_reconnect_attempts: 5
broadcast:
  type: redis
  channel: "genwatch:test"
  redis:
    addr: "localhost:6379"
    db: 2
`)

	cfg, cfgPath, err := LoadConfig[WatcherConfig](path)
	require.NoError(t, err)
	assert.Equal(t, path, cfgPath)

	assert.Equal(t, "http://localhost:3000/?session_id=abc", cfg.Address)
	assert.Equal(t, "http://localhost:8000", cfg.Server.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Channel.HeartbeatInterval)
	assert.Equal(t, 2*time.Second, cfg.Channel.ReconnectDelay)
	assert.Equal(t, 5, cfg.Channel.MaxReconnectAttempts)
	// Unset timings fall back to defaults.
	assert.Equal(t, 10*time.Second, cfg.Channel.HandshakeTimeout)
	assert.Equal(t, "redis", cfg.Broadcast.Type)
	assert.Equal(t, 2, cfg.Broadcast.Redis.DB)
}

func TestLoadConfig_WatcherDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  base_url: "http://localhost:8000"
`)

	cfg, _, err := LoadConfig[WatcherConfig](path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Channel.HeartbeatInterval)
	assert.Equal(t, 5*time.Second, cfg.Channel.ReconnectDelay)
	assert.Equal(t, 3, cfg.Channel.MaxReconnectAttempts)
}

func TestLoadConfig_MockServerDefaults(t *testing.T) {
	path := writeConfig(t, `
companies: 10
`)

	cfg, _, err := LoadConfig[MockServerConfig](path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Companies)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, 100, cfg.Contacts)
	assert.Equal(t, 20, cfg.BatchSize)
	assert.Equal(t, 200*time.Millisecond, cfg.BatchPause)
	assert.Equal(t, 15*time.Second, cfg.PauseGrace)
}

func TestLoadConfig_EnvSubstitution(t *testing.T) {
	t.Setenv("GENWATCH_BASE_URL", "http://backend:9000")

	path := writeConfig(t, `
server:
  base_url: "${GENWATCH_BASE_URL}"
  ws_url: "${GENWATCH_WS_URL:ws://backend:9000/ws}"
broadcast:
  channel: "${GENWATCH_UNSET_CHANNEL:}"
`)

	cfg, _, err := LoadConfig[WatcherConfig](path)
	require.NoError(t, err)
	assert.Equal(t, "http://backend:9000", cfg.Server.BaseURL)
	assert.Equal(t, "ws://backend:9000/ws", cfg.Server.WSURL)
	assert.Empty(t, cfg.Broadcast.Channel)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, _, err := LoadConfig[WatcherConfig](filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [broken")
	_, _, err := LoadConfig[WatcherConfig](path)
	assert.Error(t, err)
}
