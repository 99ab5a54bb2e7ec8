// Package daemon wires the Hearth server process: configuration,
// storage, the rate refresher, and the HTTP API.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration, loaded from TOML.
type Config struct {
	API     APIConfig     `toml:"api"`
	DB      DBConfig      `toml:"db"`
	Rates   RatesConfig   `toml:"rates"`
	Metrics MetricsConfig `toml:"metrics"`
}

// APIConfig controls the HTTP listener.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// DBConfig controls SQLite storage.
type DBConfig struct {
	Path string `toml:"path"`
}

// RatesConfig controls the exchange-rate refresher.
type RatesConfig struct {
	// APIURL serves USD-anchored rates as JSON. Empty disables fetching;
	// rate lookups then serve only whatever the cache already holds.
	APIURL  string `toml:"api_url"`
	Refresh string `toml:"refresh"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// Addr returns the host:port listen address.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RefreshInterval parses the refresh duration, falling back to the
// default when unset or malformed.
func (c RatesConfig) RefreshInterval() time.Duration {
	if c.Refresh == "" {
		return time.Hour
	}
	d, err := time.ParseDuration(c.Refresh)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8744,
		},
		DB: DBConfig{
			Path: defaultDBPath(),
		},
		Rates: RatesConfig{
			Refresh: "1h",
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// LoadConfig reads config from path, layered over the defaults.
// A missing file is not an error; defaults apply.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultConfigPath is ~/.hearth/config.toml.
func DefaultConfigPath() string {
	return filepath.Join(hearthDir(), "config.toml")
}

func defaultDBPath() string {
	return filepath.Join(hearthDir(), "hearth.db")
}

func hearthDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hearth"
	}
	return filepath.Join(home, ".hearth")
}
