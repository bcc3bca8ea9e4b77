// Package config loads the hub's YAML configuration file and applies
// defaults so the server can run with an empty or missing file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete hub configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Session   SessionConfig   `yaml:"session"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Redis     RedisConfig     `yaml:"redis"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the protocol listener.
type ServerConfig struct {
	// Listen is the TCP listen address (default ":10000").
	Listen string `yaml:"listen"`

	// MaxConnections caps concurrent sessions; 0 means unlimited.
	MaxConnections int `yaml:"max_connections"`
}

// SessionConfig configures session lifecycle timeouts.
type SessionConfig struct {
	// IdleTimeout kills sessions with no traffic (default 90s).
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// StartStreamTimeout bounds the wait for a device's push-stream
	// ack before the client gets a request-timeout (default 10s).
	StartStreamTimeout time.Duration `yaml:"start_stream_timeout"`

	// StreamTokenTTL is the lifetime of minted playback tokens
	// (default 60s).
	StreamTokenTTL time.Duration `yaml:"stream_token_ttl"`
}

// SnapshotConfig configures snapshot persistence.
type SnapshotConfig struct {
	// LocalRoot is the directory snapshots are written under
	// (default "./snap/").
	LocalRoot string `yaml:"local_root"`

	// WebRoot is the URL prefix snapshots are served from
	// (default "/snap/").
	WebRoot string `yaml:"web_root"`
}

// RedisConfig configures the metadata store connection.
// An empty Addr selects the in-memory store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DiscoveryConfig configures mDNS advertisement of the hub.
type DiscoveryConfig struct {
	// Enabled turns the advertiser on (default false).
	Enabled bool `yaml:"enabled"`

	// InstanceName is the mDNS instance name (default "EasyCMS").
	InstanceName string `yaml:"instance_name"`
}

// LoggingConfig configures event logging sinks.
type LoggingConfig struct {
	// Level is the slog level for console output: debug, info, warn,
	// error (default "info").
	Level string `yaml:"level"`

	// EventFile, when set, enables the CBOR protocol event capture.
	EventFile string `yaml:"event_file"`
}

// Load reads the configuration from path. A missing file is not an
// error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Default returns the configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":10000"
	}
	if c.Session.IdleTimeout <= 0 {
		c.Session.IdleTimeout = 90 * time.Second
	}
	if c.Session.StartStreamTimeout <= 0 {
		c.Session.StartStreamTimeout = 10 * time.Second
	}
	if c.Session.StreamTokenTTL <= 0 {
		c.Session.StreamTokenTTL = 60 * time.Second
	}
	if c.Snapshot.LocalRoot == "" {
		c.Snapshot.LocalRoot = "./snap/"
	}
	if c.Snapshot.WebRoot == "" {
		c.Snapshot.WebRoot = "/snap/"
	}
	if c.Discovery.InstanceName == "" {
		c.Discovery.InstanceName = "EasyCMS"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
