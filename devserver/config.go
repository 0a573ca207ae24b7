// Package devserver is a local implementation of the desk REST API backed by
// SQL storage. It exists so deskctl and desk-mcp-server can run without the
// production backend.
package devserver

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/mycelian/mycelian-desk/devmode"
)

// Config holds the dev backend configuration.
// Environment variables are parsed from the DESK_DEVSERVER_ prefix.
type Config struct {
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// DBDriver is sqlite or postgres.
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:""`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// SeedAdminToken is the bearer token for the seeded admin user.
	SeedAdminToken string `envconfig:"SEED_ADMIN_TOKEN" default:""`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// ResolveDefaults validates the driver and derives the SQLite path and admin
// token when unset.
func (c *Config) ResolveDefaults() error {
	switch c.DBDriver {
	case "sqlite":
		if c.SQLitePath == "" {
			dir, err := os.UserCacheDir()
			if err != nil {
				dir = os.TempDir()
			}
			c.SQLitePath = filepath.Join(dir, "desk", "devserver.db")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("DB_DRIVER=postgres requires POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP_PORT: %d", c.HTTPPort)
	}
	if c.SeedAdminToken == "" {
		c.SeedAdminToken = devmode.Token
	}
	return nil
}

// NewConfig parses DESK_DEVSERVER_* variables and resolves defaults.
func NewConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("DESK_DEVSERVER", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	log.Info().
		Str("db_driver", cfg.DBDriver).
		Str("sqlite_path", cfg.SQLitePath).
		Bool("postgres_dsn_present", cfg.PostgresDSN != "").
		Bool("dev_token", cfg.SeedAdminToken == devmode.Token).
		Int("port", cfg.HTTPPort).
		Msg("Configuration loaded")
	return &cfg, nil
}
