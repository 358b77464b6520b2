// ABOUTME: Configuration loading and parsing for books-mcp
// ABOUTME: Supports YAML files with environment variable expansion, duration parsing and defaults

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Session store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Defaults applied by Load for unset fields.
const (
	DefaultHTTPAddr    = "127.0.0.1:8080"
	DefaultSessionTTL  = time.Hour
	DefaultRedisPrefix = "books-mcp:session:"
	DefaultBooksPath   = "data/books.csv"
	DefaultMetricsPath = "/metrics"
)

// ErrNoConfig is returned by Path when no configuration file exists.
var ErrNoConfig = errors.New("no configuration file found")

// Config represents the complete books-mcp configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Auth      AuthConfig      `yaml:"auth"`
	Session   SessionConfig   `yaml:"session"`
	Data      DataConfig      `yaml:"data"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds server address configuration. An empty GRPCAddr
// disables the gRPC health server.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	HTTPS     bool   `yaml:"https"`  // serve with Tailscale-provisioned certs
	Funnel    bool   `yaml:"funnel"` // public Funnel (implies HTTPS)
}

// AuthConfig holds token signing and optional credential configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	// Users maps usernames to bcrypt hashes. When empty, authenticate
	// accepts any username without a password.
	Users map[string]string `yaml:"users"`
}

// SessionConfig holds session lifetime and storage configuration
type SessionConfig struct {
	TTL           time.Duration `yaml:"-"`
	SweepInterval time.Duration `yaml:"-"` // zero disables the periodic sweep

	// Raw string values for YAML unmarshaling
	TTLRaw           string `yaml:"ttl"`
	SweepIntervalRaw string `yaml:"sweep_interval"`

	Store string      `yaml:"store"` // memory or redis
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds the Redis session store connection
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	Prefix    string        `yaml:"prefix"`
	Retention time.Duration `yaml:"-"`

	RetentionRaw string `yaml:"retention"`
}

// DataConfig locates the book catalog and the optional rates file
type DataConfig struct {
	BooksPath string `yaml:"books_path"`
	RatesPath string `yaml:"rates_path"`
}

// DatabaseConfig holds the audit database configuration. An empty path
// disables the audit log.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Relative data and database paths are resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// Parse decodes, defaults and validates configuration bytes.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Path returns the configuration file to load, in priority order:
// $BOOKS_MCP_CONFIG, $XDG_CONFIG_HOME/books-mcp/config.yaml,
// ~/.config/books-mcp/config.yaml. The env var is returned even if the file
// is missing so the caller reports it.
func Path() (string, error) {
	if p := os.Getenv("BOOKS_MCP_CONFIG"); p != "" {
		return p, nil
	}

	var candidates []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "books-mcp", "config.yaml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "books-mcp", "config.yaml"))
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w (set BOOKS_MCP_CONFIG or create ~/.config/books-mcp/config.yaml)", ErrNoConfig)
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" && !c.Tailscale.Enabled {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = DefaultSessionTTL
	}
	if c.Session.Store == "" {
		c.Session.Store = StoreMemory
	}
	c.Session.Store = strings.ToLower(c.Session.Store)
	if c.Session.Redis.Prefix == "" {
		c.Session.Redis.Prefix = DefaultRedisPrefix
	}
	if c.Data.BooksPath == "" {
		c.Data.BooksPath = DefaultBooksPath
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func (c *Config) resolvePaths(base string) {
	resolve := func(p string) string {
		if p == "" || p == ":memory:" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.Data.BooksPath = resolve(c.Data.BooksPath)
	c.Data.RatesPath = resolve(c.Data.RatesPath)
	c.Database.Path = resolve(c.Database.Path)
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}

	for name, hash := range c.Auth.Users {
		if !strings.HasPrefix(hash, "$2") {
			return fmt.Errorf("auth.users.%s must be a bcrypt hash (see books-mcp hash-password)", name)
		}
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return errors.New("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Session.TTL < 0 {
		return errors.New("session.ttl must be positive")
	}
	if c.Session.SweepInterval < 0 {
		return errors.New("session.sweep_interval must not be negative")
	}

	switch c.Session.Store {
	case StoreMemory:
	case StoreRedis:
		if c.Session.Redis.Addr == "" {
			return errors.New("session.redis.addr is required when session.store is redis")
		}
		if r := c.Session.Redis.Retention; r != 0 && r <= c.Session.TTL {
			return fmt.Errorf("session.redis.retention (%s) must exceed session.ttl (%s)", r, c.Session.TTL)
		}
	default:
		return fmt.Errorf("session.store must be %q or %q, got %q", StoreMemory, StoreRedis, c.Session.Store)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Session.TTLRaw != "" {
		cfg.Session.TTL, err = time.ParseDuration(cfg.Session.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing session.ttl %q: %w", cfg.Session.TTLRaw, err)
		}
		if cfg.Session.TTL <= 0 {
			return fmt.Errorf("session.ttl %q must be positive", cfg.Session.TTLRaw)
		}
	}

	if cfg.Session.SweepIntervalRaw != "" {
		cfg.Session.SweepInterval, err = time.ParseDuration(cfg.Session.SweepIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing session.sweep_interval %q: %w", cfg.Session.SweepIntervalRaw, err)
		}
	}

	if cfg.Session.Redis.RetentionRaw != "" {
		cfg.Session.Redis.Retention, err = time.ParseDuration(cfg.Session.Redis.RetentionRaw)
		if err != nil {
			return fmt.Errorf("parsing session.redis.retention %q: %w", cfg.Session.Redis.RetentionRaw, err)
		}
	}

	return nil
}
