package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Listen != ":10000" {
		t.Errorf("Listen = %q, want :10000", cfg.Server.Listen)
	}
	if cfg.Session.IdleTimeout != 90*time.Second {
		t.Errorf("IdleTimeout = %v, want 90s", cfg.Session.IdleTimeout)
	}
	if cfg.Session.StartStreamTimeout != 10*time.Second {
		t.Errorf("StartStreamTimeout = %v, want 10s", cfg.Session.StartStreamTimeout)
	}
	if cfg.Snapshot.WebRoot != "/snap/" {
		t.Errorf("WebRoot = %q, want /snap/", cfg.Snapshot.WebRoot)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "easycms.yaml")
	data := `
server:
  listen: ":20000"
  max_connections: 500
session:
  idle_timeout: 2m
  start_stream_timeout: 5s
redis:
  addr: "127.0.0.1:6379"
  db: 3
discovery:
  enabled: true
logging:
  level: debug
  event_file: /tmp/events.cborlog
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Listen != ":20000" {
		t.Errorf("Listen = %q, want :20000", cfg.Server.Listen)
	}
	if cfg.Server.MaxConnections != 500 {
		t.Errorf("MaxConnections = %d, want 500", cfg.Server.MaxConnections)
	}
	if cfg.Session.IdleTimeout != 2*time.Minute {
		t.Errorf("IdleTimeout = %v, want 2m", cfg.Session.IdleTimeout)
	}
	if cfg.Session.StartStreamTimeout != 5*time.Second {
		t.Errorf("StartStreamTimeout = %v, want 5s", cfg.Session.StartStreamTimeout)
	}
	// Unspecified fields still get defaults.
	if cfg.Session.StreamTokenTTL != 60*time.Second {
		t.Errorf("StreamTokenTTL = %v, want 60s", cfg.Session.StreamTokenTTL)
	}
	if cfg.Redis.Addr != "127.0.0.1:6379" || cfg.Redis.DB != 3 {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if !cfg.Discovery.Enabled {
		t.Error("Discovery.Enabled = false, want true")
	}
	if cfg.Logging.EventFile != "/tmp/events.cborlog" {
		t.Errorf("EventFile = %q", cfg.Logging.EventFile)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() error = nil, want parse error")
	}
}
