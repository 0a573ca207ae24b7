package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestConfigLoad_Defaults(t *testing.T) {
	unsetenv(t, "DESK_API_URL", "DESK_TOKEN_FILE", "DESK_HTTP_TIMEOUT", "DESK_MCP_TRANSPORT")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.APIURL != "http://localhost:8080/api" {
		t.Fatalf("unexpected default api url: %s", cfg.APIURL)
	}
	if cfg.HTTPTimeout != 30*time.Second || cfg.MCPTransport != "stdio" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if filepath.Base(cfg.TokenFile) != "token.json" {
		t.Fatalf("token file not derived: %s", cfg.TokenFile)
	}
}

func TestConfigLoad_EnvOverride(t *testing.T) {
	t.Setenv("DESK_API_URL", "https://desk.example.com/api/")
	t.Setenv("DESK_USER_ID", "u-42")
	t.Setenv("DESK_HTTP_TIMEOUT", "3s")
	t.Setenv("DESK_TOKEN_FILE", "/tmp/tok.json")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.APIURL != "https://desk.example.com/api" {
		t.Fatalf("trailing slash not trimmed: %s", cfg.APIURL)
	}
	if cfg.UserID != "u-42" || cfg.HTTPTimeout != 3*time.Second || cfg.TokenFile != "/tmp/tok.json" {
		t.Fatalf("env override failed: %+v", cfg)
	}
}

func TestResolveDefaults_Rejects(t *testing.T) {
	cases := map[string]Config{
		"bad url":       {APIURL: "localhost", LogLevel: "info", MCPTransport: "stdio"},
		"bad level":     {APIURL: "http://x", LogLevel: "loud", MCPTransport: "stdio"},
		"bad transport": {APIURL: "http://x", LogLevel: "info", MCPTransport: "grpc"},
	}
	for name, c := range cases {
		c := c
		if err := c.ResolveDefaults(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLevel(t *testing.T) {
	c := Config{LogLevel: "warn"}
	if c.Level() != zerolog.WarnLevel {
		t.Fatalf("got %s", c.Level())
	}
	c.Debug = true
	if c.Level() != zerolog.DebugLevel {
		t.Fatalf("debug flag should force debug level, got %s", c.Level())
	}
}

// unsetenv removes keys for the duration of the test. An empty value would
// not fall back to the envconfig default.
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}
