// Package config loads the YAML tuning document for a commhub/mesh
// process: hub history/timeout defaults and mesh mailbox/gossip
// defaults, following the teacher's internal/config load-then-default
// pattern.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level tuning document.
type Config struct {
	AppName string `yaml:"app_name"`
	Debug   bool   `yaml:"debug"`

	Hub  HubConfig  `yaml:"hub"`
	Mesh MeshConfig `yaml:"mesh"`
}

// HubConfig tunes CommHub defaults.
type HubConfig struct {
	HistorySize          int   `yaml:"history_size"`
	DefaultRequestTimeout int64 `yaml:"default_request_timeout_ms"`
	DefaultLockTimeout    int64 `yaml:"default_lock_timeout_ms"`
	DeadlockSweepInterval int64 `yaml:"deadlock_sweep_interval_ms"`
}

// MeshConfig tunes the mesh's mailbox and gossip defaults.
type MeshConfig struct {
	MailboxCapacity  int   `yaml:"mailbox_capacity"`
	GossipIntervalMs int64 `yaml:"gossip_interval_ms"`
	GossipFanout     int   `yaml:"gossip_fanout"`
	SuspectTimeoutMs int64 `yaml:"suspect_timeout_ms"`
	DeadTimeoutMs    int64 `yaml:"dead_timeout_ms"`
}

// Load reads and parses filename, filling zero-valued fields with the
// documented defaults (spec §4.6's typical tunables, and the hub's own
// DefaultHistorySize).
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if cfg.Hub.DefaultRequestTimeout < 0 {
		return nil, fmt.Errorf("hub.default_request_timeout_ms cannot be negative: %d", cfg.Hub.DefaultRequestTimeout)
	}
	if cfg.Hub.DefaultLockTimeout < 0 {
		return nil, fmt.Errorf("hub.default_lock_timeout_ms cannot be negative: %d", cfg.Hub.DefaultLockTimeout)
	}

	return &cfg, nil
}

// Default returns a Config with every field at its documented default,
// for callers (cmd/meshdemo) that have no config file on argv.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Hub.HistorySize == 0 {
		cfg.Hub.HistorySize = 1000
	}
	if cfg.Hub.DefaultRequestTimeout == 0 {
		cfg.Hub.DefaultRequestTimeout = 30_000
	}
	if cfg.Hub.DefaultLockTimeout == 0 {
		cfg.Hub.DefaultLockTimeout = 30_000
	}
	if cfg.Hub.DeadlockSweepInterval == 0 {
		cfg.Hub.DeadlockSweepInterval = 5_000
	}
	if cfg.Mesh.MailboxCapacity == 0 {
		cfg.Mesh.MailboxCapacity = 256
	}
	if cfg.Mesh.GossipIntervalMs == 0 {
		cfg.Mesh.GossipIntervalMs = 1000
	}
	if cfg.Mesh.GossipFanout == 0 {
		cfg.Mesh.GossipFanout = 3
	}
	if cfg.Mesh.SuspectTimeoutMs == 0 {
		cfg.Mesh.SuspectTimeoutMs = 5000
	}
	if cfg.Mesh.DeadTimeoutMs == 0 {
		cfg.Mesh.DeadTimeoutMs = 15000
	}
}
