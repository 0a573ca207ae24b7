// Package config loads deskctl and desk-mcp-server settings from the
// environment. Variables use the DESK_ prefix, e.g. DESK_API_URL.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// Prefix is the environment variable prefix for client front-ends.
const Prefix = "DESK"

// Config holds settings shared by the client front-ends.
type Config struct {
	APIURL      string        `envconfig:"API_URL" default:"http://localhost:8080/api"`
	Token       string        `envconfig:"TOKEN" default:""`
	TokenFile   string        `envconfig:"TOKEN_FILE" default:""`
	UserID      string        `envconfig:"USER_ID" default:""`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"info"`
	Debug       bool          `envconfig:"DEBUG" default:"false"`

	// MCP server only.
	MCPTransport string `envconfig:"MCP_TRANSPORT" default:"stdio"`
	MCPPort      int    `envconfig:"MCP_PORT" default:"11546"`
}

// New parses the environment and fills derived defaults.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ResolveDefaults validates the API URL and level and derives the token
// file location when unset.
func (c *Config) ResolveDefaults() error {
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid API_URL %q", c.APIURL)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	switch c.MCPTransport {
	case "stdio", "http":
	default:
		return fmt.Errorf("unsupported MCP_TRANSPORT: %s", c.MCPTransport)
	}
	if c.TokenFile == "" {
		c.TokenFile = DefaultTokenFile()
	}
	return nil
}

// Level returns the parsed log level, or info when it cannot be parsed.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	if c.Debug {
		return zerolog.DebugLevel
	}
	return lvl
}

// GetMCPAddr returns the MCP HTTP listen address.
func (c *Config) GetMCPAddr() string {
	return fmt.Sprintf(":%d", c.MCPPort)
}

// DefaultTokenFile is $XDG_CONFIG_HOME/desk/token.json, falling back to the
// user config dir and finally the working directory.
func DefaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "desk-token.json"
	}
	return filepath.Join(dir, "desk", "token.json")
}

// NewForTesting returns a config pointing at baseURL with a static token.
func NewForTesting(baseURL string) *Config {
	return &Config{
		APIURL:       strings.TrimRight(baseURL, "/"),
		Token:        "test-token",
		TokenFile:    filepath.Join(os.TempDir(), "desk-test-token.json"),
		UserID:       "u-test",
		HTTPTimeout:  5 * time.Second,
		LogLevel:     "debug",
		MCPTransport: "stdio",
		MCPPort:      11546,
	}
}
