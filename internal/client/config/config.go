// Package config loads runtime configuration for the Lockbox CLI.
//
// Sources and precedence:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
package config

import "time"

// Config holds runtime settings for the Lockbox CLI.
//
// Fields:
//   - ServerURL: base URL of the Lockbox HTTP API.
//   - DatabasePath: path of the local SQLite cache.
//   - RequestTimeout: per-request HTTP timeout.
type Config struct {
	ServerURL      string
	DatabasePath   string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://localhost:8080"
	c.DatabasePath = "lockbox.db"
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
