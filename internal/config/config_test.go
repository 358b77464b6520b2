// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, duration parsing, defaults and validation

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8080"
  grpc_addr: "0.0.0.0:50051"

auth:
  jwt_secret: "test-secret"
  users:
    alice: "$2a$10$abcdefghijklmnopqrstuv"

session:
  ttl: "30m"
  sweep_interval: "5m"
  store: "redis"
  redis:
    addr: "localhost:6379"
    db: 2
    retention: "2h"

data:
  books_path: "books.csv"
  rates_path: "/etc/books-mcp/rates.toml"

database:
  path: "audit.db"

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  path: "/metrics"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Server.GRPCAddr != "0.0.0.0:50051" {
		t.Errorf("Server.GRPCAddr = %q, want %q", cfg.Server.GRPCAddr, "0.0.0.0:50051")
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Errorf("Session.TTL = %v, want 30m", cfg.Session.TTL)
	}
	if cfg.Session.SweepInterval != 5*time.Minute {
		t.Errorf("Session.SweepInterval = %v, want 5m", cfg.Session.SweepInterval)
	}
	if cfg.Session.Store != StoreRedis {
		t.Errorf("Session.Store = %q, want redis", cfg.Session.Store)
	}
	if cfg.Session.Redis.DB != 2 || cfg.Session.Redis.Retention != 2*time.Hour {
		t.Errorf("unexpected redis config: %+v", cfg.Session.Redis)
	}
	if cfg.Session.Redis.Prefix != DefaultRedisPrefix {
		t.Errorf("Session.Redis.Prefix = %q, want default", cfg.Session.Redis.Prefix)
	}
	if len(cfg.Auth.Users) != 1 {
		t.Errorf("expected 1 user, got %d", len(cfg.Auth.Users))
	}

	dir := filepath.Dir(configPath)
	if cfg.Data.BooksPath != filepath.Join(dir, "books.csv") {
		t.Errorf("Data.BooksPath = %q, want resolved against config dir", cfg.Data.BooksPath)
	}
	if cfg.Data.RatesPath != "/etc/books-mcp/rates.toml" {
		t.Errorf("Data.RatesPath = %q, absolute paths must be kept", cfg.Data.RatesPath)
	}
	if cfg.Database.Path != filepath.Join(dir, "audit.db") {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}

	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`auth: {jwt_secret: "s"}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Server.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, DefaultHTTPAddr)
	}
	if cfg.Server.GRPCAddr != "" {
		t.Errorf("Server.GRPCAddr = %q, want empty", cfg.Server.GRPCAddr)
	}
	if cfg.Session.TTL != DefaultSessionTTL {
		t.Errorf("Session.TTL = %v, want %v", cfg.Session.TTL, DefaultSessionTTL)
	}
	if cfg.Session.SweepInterval != 0 {
		t.Errorf("Session.SweepInterval = %v, want disabled", cfg.Session.SweepInterval)
	}
	if cfg.Session.Store != StoreMemory {
		t.Errorf("Session.Store = %q, want memory", cfg.Session.Store)
	}
	if cfg.Data.BooksPath != DefaultBooksPath {
		t.Errorf("Data.BooksPath = %q", cfg.Data.BooksPath)
	}
	if cfg.Database.Path != "" {
		t.Errorf("Database.Path = %q, want empty (audit disabled)", cfg.Database.Path)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics.Path = %q", cfg.Metrics.Path)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_BOOKS_MCP_SECRET", "from-env")
	t.Setenv("TEST_BOOKS_MCP_REDIS", "redis.internal:6379")

	configPath := writeConfig(t, `
auth:
  jwt_secret: "${TEST_BOOKS_MCP_SECRET}"
session:
  store: redis
  redis:
    addr: "${TEST_BOOKS_MCP_REDIS}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "from-env")
	}
	if cfg.Session.Redis.Addr != "redis.internal:6379" {
		t.Errorf("Session.Redis.Addr = %q", cfg.Session.Redis.Addr)
	}
}

func TestExpandEnvVars_Unset(t *testing.T) {
	got := expandEnvVars("secret: ${TEST_BOOKS_MCP_DEFINITELY_UNSET}")
	if got != "secret: " {
		t.Errorf("expandEnvVars() = %q, want unset vars replaced with empty string", got)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing jwt secret",
			content: `session: {ttl: "1h"}`,
			wantErr: "auth.jwt_secret is required",
		},
		{
			name:    "invalid ttl",
			content: "auth: {jwt_secret: s}\nsession: {ttl: \"soon\"}",
			wantErr: "parsing session.ttl",
		},
		{
			name:    "non-positive ttl",
			content: "auth: {jwt_secret: s}\nsession: {ttl: \"0s\"}",
			wantErr: "must be positive",
		},
		{
			name:    "unknown store",
			content: "auth: {jwt_secret: s}\nsession: {store: \"etcd\"}",
			wantErr: "session.store must be",
		},
		{
			name:    "redis without addr",
			content: "auth: {jwt_secret: s}\nsession: {store: redis}",
			wantErr: "session.redis.addr is required",
		},
		{
			name:    "redis retention shorter than ttl",
			content: "auth: {jwt_secret: s}\nsession: {ttl: 1h, store: redis, redis: {addr: \"x:1\", retention: 30m}}",
			wantErr: "must exceed session.ttl",
		},
		{
			name:    "plaintext password",
			content: "auth: {jwt_secret: s, users: {alice: hunter2}}",
			wantErr: "must be a bcrypt hash",
		},
		{
			name:    "tailscale without hostname",
			content: "auth: {jwt_secret: s}\ntailscale: {enabled: true}",
			wantErr: "tailscale.hostname is required",
		},
		{
			name:    "bad log level",
			content: "auth: {jwt_secret: s}\nlogging: {level: loud}",
			wantErr: "logging.level",
		},
		{
			name:    "bad log format",
			content: "auth: {jwt_secret: s}\nlogging: {format: xml}",
			wantErr: "logging.format",
		},
		{
			name:    "bad metrics path",
			content: "auth: {jwt_secret: s}\nmetrics: {enabled: true, path: metrics}",
			wantErr: "metrics.path",
		},
		{
			name:    "invalid yaml",
			content: "auth: [",
			wantErr: "parsing config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			if err == nil {
				t.Fatalf("Parse() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("Load() error = %v, want reading config file error", err)
	}
}

func TestPath(t *testing.T) {
	t.Run("env var wins", func(t *testing.T) {
		t.Setenv("BOOKS_MCP_CONFIG", "/custom/config.yaml")
		got, err := Path()
		if err != nil || got != "/custom/config.yaml" {
			t.Errorf("Path() = %q, %v", got, err)
		}
	})

	t.Run("xdg config home", func(t *testing.T) {
		xdg := t.TempDir()
		want := filepath.Join(xdg, "books-mcp", "config.yaml")
		if err := os.MkdirAll(filepath.Dir(want), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(want, []byte("auth: {jwt_secret: s}"), 0644); err != nil {
			t.Fatal(err)
		}
		t.Setenv("BOOKS_MCP_CONFIG", "")
		t.Setenv("XDG_CONFIG_HOME", xdg)

		got, err := Path()
		if err != nil || got != want {
			t.Errorf("Path() = %q, %v, want %q", got, err, want)
		}
	})

	t.Run("nothing found", func(t *testing.T) {
		t.Setenv("BOOKS_MCP_CONFIG", "")
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("HOME", t.TempDir())

		_, err := Path()
		if !errors.Is(err, ErrNoConfig) {
			t.Errorf("Path() error = %v, want ErrNoConfig", err)
		}
	})
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Setenv("BOOKS_MCP_JWT_SECRET", "example-secret")
	t.Setenv("BOOKS_MCP_REDIS_PASSWORD", "")

	examplePath := filepath.Join("..", "..", "config.example.yaml")
	cfg, err := Load(examplePath)
	if err != nil {
		t.Fatalf("config.example.yaml should load: %v", err)
	}

	if cfg.Auth.JWTSecret != "example-secret" {
		t.Errorf("JWTSecret = %q", cfg.Auth.JWTSecret)
	}
	if cfg.Session.Store != StoreMemory || cfg.Session.TTL != time.Hour {
		t.Errorf("unexpected session config: %+v", cfg.Session)
	}
	wantBooks := filepath.Join(filepath.Dir(examplePath), "data", "books.csv")
	if cfg.Data.BooksPath != wantBooks {
		t.Errorf("BooksPath = %q, want %q", cfg.Data.BooksPath, wantBooks)
	}
	if _, err := os.Stat(cfg.Data.BooksPath); err != nil {
		t.Errorf("example catalog missing: %v", err)
	}
}
