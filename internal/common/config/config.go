package config

import (
	"os"
	"regexp"
	"time"

	"github.com/crmkit/genwatch/pkg/helper"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	// WatcherConfig is the configuration for a single watcher tab.
	WatcherConfig struct {
		// Address is the tab address; the session identifier is recovered
		// from (or written into) its query parameters.
		Address   string          `yaml:"address"`
		Server    ServerConfig    `yaml:"server"`
		Channel   ChannelConfig   `yaml:"channel"`
		Broadcast BroadcastConfig `yaml:"broadcast"`
		Logger    LoggerConfig    `yaml:"logger"`
		Metrics   MetricsConfig   `yaml:"metrics"`
	}

	// ServerConfig points at the generation backend.
	ServerConfig struct {
		BaseURL string `yaml:"base_url"` // http(s) base for trigger/status endpoints
		WSURL   string `yaml:"ws_url"`   // ws(s) endpoint for the duplex connection
	}

	// ChannelConfig tunes the duplex connection state machine.
	ChannelConfig struct {
		HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
		ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
		MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
		HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	}

	// BroadcastConfig selects the cross-tab broadcast transport.
	BroadcastConfig struct {
		Type    string               `yaml:"type"`    // "memory" or "redis"
		Channel string               `yaml:"channel"` // broadcast scope name
		Redis   BroadcastRedisConfig `yaml:"redis"`
	}

	// BroadcastRedisConfig is the Redis configuration for the broadcast
	// transport.
	BroadcastRedisConfig struct {
		Addr     string `yaml:"addr"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`    // whether to compress backup files
		Color      bool   `yaml:"color"`       // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
	}

	// MetricsConfig represents the metrics configuration
	MetricsConfig struct {
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}

	// MockServerConfig is the configuration for the mock generation backend.
	MockServerConfig struct {
		Port       int           `yaml:"port"`
		Companies  int           `yaml:"companies"`
		Contacts   int           `yaml:"contacts"`
		BatchSize  int           `yaml:"batch_size"`
		BatchPause time.Duration `yaml:"batch_pause"`
		PauseGrace time.Duration `yaml:"pause_grace"` // how long a paused job survives without a connection
		Logger     LoggerConfig  `yaml:"logger"`
		Metrics    MetricsConfig `yaml:"metrics"`
	}
)

type Type interface {
	WatcherConfig | MockServerConfig
}

// LoadConfig loads configuration from a YAML file with environment variable
// support.
func LoadConfig[T Type](filename string) (*T, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	// Resolve environment variables
	data = resolveEnv(data)
	var cfg T
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, err
	}

	if wCfg, ok := any(&cfg).(*WatcherConfig); ok {
		wCfg.Channel.SetDefaults()
	}
	if mCfg, ok := any(&cfg).(*MockServerConfig); ok {
		mCfg.SetDefaults()
	}

	return &cfg, cfgPath, nil
}

// SetDefaults fills in the channel timing defaults.
func (c *ChannelConfig) SetDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 3
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
}

// SetDefaults fills in the mock server defaults.
func (c *MockServerConfig) SetDefaults() {
	if c.Port <= 0 {
		c.Port = 8000
	}
	if c.Companies <= 0 {
		c.Companies = 100
	}
	if c.Contacts <= 0 {
		c.Contacts = 100
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.BatchPause <= 0 {
		c.BatchPause = 200 * time.Millisecond
	}
	if c.PauseGrace <= 0 {
		c.PauseGrace = 15 * time.Second
	}
}

// resolveEnv replaces environment variable placeholders in YAML content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string
		if len(matches) > 2 && matches[2] != nil {
			defaultValue = string(matches[2])
		}

		if value, ok := os.LookupEnv(envKey); ok {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
