// ABOUTME: Configuration loading and parsing for pgmcp-gateway
// ABOUTME: Supports YAML/TOML files, .env files, environment overrides and duration parsing

package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/2389/pgmcp-gateway/internal/dispatch"
)

// Defaults applied before the config file and environment are read.
const (
	DefaultHost              = "0.0.0.0"
	DefaultPort              = 8080
	DefaultMaxBodyBytes      = 4 << 20
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 5 * time.Second
)

// Environment variables that override file values.
const (
	EnvConfigPath  = "PGMCP_CONFIG"
	EnvDatabaseURL = "DATABASE_URL"
	EnvHost        = "HOST"
	EnvPort        = "PORT"
	EnvLogLevel    = "LOG_LEVEL"
	EnvLogFormat   = "LOG_FORMAT"
)

// Config represents the complete pgmcp-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Backend  BackendConfig  `yaml:"backend" toml:"backend"`
	Audit    AuditConfig    `yaml:"audit" toml:"audit"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	Host         string `yaml:"host" toml:"host"`
	Port         int    `yaml:"port" toml:"port"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" toml:"max_body_bytes"`

	ReadHeaderTimeout time.Duration `yaml:"-" toml:"-"`
	ShutdownTimeout   time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	ReadHeaderTimeoutRaw string `yaml:"read_header_timeout" toml:"read_header_timeout"`
	ShutdownTimeoutRaw   string `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DatabaseConfig holds backend store configuration
type DatabaseConfig struct {
	URL           string `yaml:"url" toml:"url"`
	DispatchQuery string `yaml:"dispatch_query" toml:"dispatch_query"`
	Pool          bool   `yaml:"pool" toml:"pool"`           // use pgxpool instead of a connection per request
	MaxConns      int32  `yaml:"max_conns" toml:"max_conns"` // pool only; 0 keeps the pgxpool default

	DispatchTimeout    time.Duration `yaml:"-" toml:"-"`
	DispatchTimeoutRaw string        `yaml:"dispatch_timeout" toml:"dispatch_timeout"`
}

// BackendConfig controls how backend failures are reported to callers
type BackendConfig struct {
	// RedactErrors replaces backend failure text with "Internal error" in responses.
	RedactErrors bool `yaml:"redact_errors" toml:"redact_errors"`
}

// AuditConfig holds dispatch audit log configuration
type AuditConfig struct {
	// Path to the SQLite audit database. Empty disables auditing.
	Path string `yaml:"path" toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              DefaultHost,
			Port:              DefaultPort,
			MaxBodyBytes:      DefaultMaxBodyBytes,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			ShutdownTimeout:   DefaultShutdownTimeout,
		},
		Database: DatabaseConfig{
			DispatchQuery: dispatch.DefaultQuery,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, an optional file, a .env file in
// the working directory, and environment overrides, in increasing precedence.
// An empty path means no config file. Load does not validate; call Validate
// before serving.
func Load(path string) (*Config, error) {
	// Variables already set in the environment win over .env entries.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	return cfg, nil
}

// loadFile decodes a YAML or TOML file (chosen by extension) over cfg.
// Environment variables in the format ${VAR_NAME} are expanded first.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q (use .yaml, .yml or .toml)", filepath.Ext(path))
	}
	return nil
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

// applyEnv overlays the well-known environment variables.
func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv(EnvHost); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", EnvPort, v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Logging.Format = v
	}
	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required: set %s or database.url", EnvDatabaseURL)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}

	if c.Database.MaxConns < 0 {
		return fmt.Errorf("database.max_conns must not be negative, got %d", c.Database.MaxConns)
	}

	if c.Database.DispatchTimeout < 0 {
		return fmt.Errorf("database.dispatch_timeout must not be negative")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.read_header_timeout", cfg.Server.ReadHeaderTimeoutRaw, &cfg.Server.ReadHeaderTimeout},
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeoutRaw, &cfg.Server.ShutdownTimeout},
		{"database.dispatch_timeout", cfg.Database.DispatchTimeoutRaw, &cfg.Database.DispatchTimeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// RedactedDatabaseURL returns the database location without credentials, for display.
func (c *Config) RedactedDatabaseURL() string {
	u := c.Database.URL
	if i := strings.LastIndex(u, "@"); i >= 0 {
		return u[i+1:]
	}
	if u == "" {
		return ""
	}
	return "configured"
}
