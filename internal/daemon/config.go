// Package daemon manages the studydash server lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/studydash/studydash/internal/app/engagement"
	"github.com/studydash/studydash/internal/infra/cache"
	"github.com/studydash/studydash/internal/infra/store"
	"github.com/studydash/studydash/internal/logging"
)

// Config holds all daemon configuration.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Storage    store.Config     `toml:"storage"`
	Cache      cache.Config     `toml:"cache"`
	Engagement EngagementConfig `toml:"engagement"`
	Logging    logging.Config   `toml:"logging"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Host           string        `toml:"host"`
	Port           int           `toml:"port"`
	CORSOrigins    []string      `toml:"cors_origins"`
	RequestTimeout time.Duration `toml:"request_timeout"`
}

// EngagementConfig tunes the engine.
type EngagementConfig struct {
	// AchievementsFile replaces the built-in catalog when set.
	AchievementsFile string `toml:"achievements_file"`
	MaxClaimPasses   int    `toml:"max_claim_passes"`
}

// TelemetryConfig controls observability endpoints.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	homeDir := studydashHome()
	return Config{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8420,
			CORSOrigins:    []string{"*"},
			RequestTimeout: 30 * time.Second,
		},
		Storage: store.Config{
			Driver:       store.DriverSQLite,
			Dir:          homeDir,
			MaxOpenConns: 10,
		},
		Cache: cache.Config{
			LRUSize:        1024,
			LeaderboardTTL: time.Minute,
		},
		Engagement: EngagementConfig{
			MaxClaimPasses: engagement.DefaultMaxClaimPasses,
		},
		Logging: logging.Config{
			Level:      "info",
			File:       filepath.Join(homeDir, "studydash.log"),
			MaxSizeMB:  50,
			MaxFiles:   5,
			MaxAgeDays: 14,
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// LoadConfig reads config from $STUDYDASH_HOME/config.toml, falling back to defaults.
func LoadConfig() (Config, error) {
	return LoadConfigFile(ConfigPath())
}

// LoadConfigFile reads config from path. A missing file yields the defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the daemon cannot start with.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "", store.DriverSQLite:
	case store.DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage: postgres driver requires dsn")
		}
	default:
		return fmt.Errorf("storage: unknown driver %q", c.Storage.Driver)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: port %d out of range", c.Server.Port)
	}
	if c.Engagement.MaxClaimPasses < 0 {
		return fmt.Errorf("engagement: max_claim_passes must not be negative")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// SaveConfig writes the config to $STUDYDASH_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// ConfigPath is the location of the config file.
func ConfigPath() string {
	return filepath.Join(studydashHome(), "config.toml")
}

// studydashHome returns the studydash data directory.
func studydashHome() string {
	if env := os.Getenv("STUDYDASH_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".studydash")
}

// Home is exported for use by other packages.
func Home() string {
	return studydashHome()
}
