// Package config loads the gateway configuration from a JSON file with
// environment overrides. Secrets (the Postgres DSN) come from the
// environment only and are never persisted.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is the root configuration for the deskgate server.
type Config struct {
	Gateway  GatewayConfig  `json:"gateway"`
	Database DatabaseConfig `json:"database,omitempty"`
	Media    MediaConfig    `json:"media,omitempty"`
	Ingest   IngestConfig   `json:"ingest,omitempty"`
}

// GatewayConfig configures the websocket fan-out listener.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Addr returns the listen address.
func (g GatewayConfig) Addr() string {
	host := g.Host
	if host == "" {
		host = "0.0.0.0"
	}
	port := g.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// DatabaseConfig configures Postgres. PostgresDSN is never read from the
// config file, only from env DESKGATE_POSTGRES_DSN. Without a DSN the
// server runs on the in-memory store.
type DatabaseConfig struct {
	PostgresDSN string `json:"-"`
}

// MediaConfig configures where downloaded media payloads land.
type MediaConfig struct {
	Dir string `json:"dir,omitempty"` // default "public"
}

// IngestConfig tunes pipeline timing. Values are milliseconds.
type IngestConfig struct {
	DebounceMS int `json:"debounce_ms,omitempty"` // default 3000
	AckDelayMS int `json:"ack_delay_ms,omitempty"` // default 500
}

// DebounceDelay returns the configured debounce quiet period.
func (i IngestConfig) DebounceDelay() time.Duration {
	if i.DebounceMS <= 0 {
		return 0
	}
	return time.Duration(i.DebounceMS) * time.Millisecond
}

// AckDelay returns the configured ack settle delay.
func (i IngestConfig) AckDelay() time.Duration {
	if i.AckDelayMS <= 0 {
		return 0
	}
	return time.Duration(i.AckDelayMS) * time.Millisecond
}

// Load reads the config file (missing file yields defaults) and applies env
// overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// ApplyEnvOverrides reads environment variables over file values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("DESKGATE_POSTGRES_DSN"); v != "" {
		c.Database.PostgresDSN = v
	}
	if v := os.Getenv("DESKGATE_MEDIA_DIR"); v != "" {
		c.Media.Dir = v
	}
}
