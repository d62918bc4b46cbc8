// ABOUTME: Configuration loading and parsing for pharma-console
// ABOUTME: Supports YAML or TOML files with .env loading, env var expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults used when a value is absent from the config file.
const (
	DefaultBaseURL    = "http://localhost:8000"
	DefaultAdminKey   = "dev-admin-key"
	DefaultTimeout    = 10 * time.Second
	DefaultSessionTTL = 12 * time.Hour
	DefaultTraceLimit = 50
	MaxTraceLimit     = 100
)

// Session backends
const (
	SessionBackendFile   = "file"
	SessionBackendSQLite = "sqlite"
	SessionBackendMemory = "memory"
)

// Config represents the complete pharma-console configuration
type Config struct {
	API     APIConfig     `yaml:"api" toml:"api"`
	Session SessionConfig `yaml:"session" toml:"session"`
	Auth    AuthConfig    `yaml:"auth" toml:"auth"`
	Console ConsoleConfig `yaml:"console" toml:"console"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// APIConfig holds backend connection settings
type APIConfig struct {
	BaseURL   string        `yaml:"base_url" toml:"base_url"`
	AdminKey  string        `yaml:"admin_key" toml:"admin_key"`
	Timeout   time.Duration `yaml:"-" toml:"-"`
	RateLimit float64       `yaml:"rate_limit" toml:"rate_limit"` // requests per second, 0 disables
	RateBurst int           `yaml:"rate_burst" toml:"rate_burst"`

	// Raw string value for unmarshaling
	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// SessionConfig selects where the session credential is kept
type SessionConfig struct {
	Backend string `yaml:"backend" toml:"backend"`
	Path    string `yaml:"path" toml:"path"`
}

// AuthConfig holds operator login configuration
type AuthConfig struct {
	SessionSecret string           `yaml:"session_secret" toml:"session_secret"`
	SessionTTL    time.Duration    `yaml:"-" toml:"-"`
	DevMode       bool             `yaml:"dev_mode" toml:"dev_mode"`
	Operators     []OperatorConfig `yaml:"operators" toml:"operators"`

	SessionTTLRaw string `yaml:"session_ttl" toml:"session_ttl"`
}

// OperatorConfig is one staff account allowed to log in
type OperatorConfig struct {
	Email        string `yaml:"email" toml:"email"`
	PasswordHash string `yaml:"password_hash" toml:"password_hash"`
}

// ConsoleConfig holds presentation defaults
type ConsoleConfig struct {
	TraceLimit int `yaml:"trace_limit" toml:"trace_limit"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns a configuration with every default applied and the
// PHARMA_* environment overrides honoured. It is what Resolve returns when
// no config file exists.
func Default() *Config {
	cfg := &Config{
		API: APIConfig{
			BaseURL:  os.Getenv("PHARMA_API_BASE_URL"),
			AdminKey: os.Getenv("PHARMA_ADMIN_KEY"),
		},
		Auth: AuthConfig{
			SessionSecret: os.Getenv("PHARMA_SESSION_SECRET"),
		},
	}
	applyDefaults(cfg)
	return cfg
}

// Resolve locates and loads the configuration. An explicit path must exist.
// Otherwise PHARMA_CONFIG is consulted, then the default location; if neither
// names an existing file the defaults are returned.
func Resolve(path string) (*Config, error) {
	loadDotEnv()

	if path != "" {
		return Load(path)
	}
	if env := os.Getenv("PHARMA_CONFIG"); env != "" {
		return Load(env)
	}

	dir, err := Dir()
	if err == nil {
		for _, name := range []string{"console.yaml", "console.yml", "console.toml"} {
			candidate := filepath.Join(dir, name)
			if _, statErr := os.Stat(candidate); statErr == nil {
				return Load(candidate)
			}
		}
	}

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Dir returns the pharma-console configuration directory
// ($XDG_CONFIG_HOME/pharma or ~/.config/pharma).
func Dir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locating home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "pharma"), nil
}

// ResolvedPath returns the storage path for the configured session backend,
// falling back to a file under Dir().
func (s SessionConfig) ResolvedPath() (string, error) {
	if s.Path != "" {
		return s.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	if s.Backend == SessionBackendSQLite {
		return filepath.Join(dir, "console.db"), nil
	}
	return filepath.Join(dir, "token"), nil
}

// loadDotEnv loads ./.env into the process environment without overriding
// variables that are already set.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: reading .env: %v\n", err)
	}
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

// applyDefaults fills zero values. Expanded-but-unset variables arrive as
// empty strings, so they fall back here too.
func applyDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultBaseURL
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	if cfg.API.AdminKey == "" {
		cfg.API.AdminKey = DefaultAdminKey
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = DefaultTimeout
	}
	if cfg.API.RateLimit > 0 && cfg.API.RateBurst <= 0 {
		cfg.API.RateBurst = 1
	}
	if cfg.Session.Backend == "" {
		cfg.Session.Backend = SessionBackendFile
	}
	if cfg.Auth.SessionTTL == 0 {
		cfg.Auth.SessionTTL = DefaultSessionTTL
	}
	if cfg.Console.TraceLimit == 0 {
		cfg.Console.TraceLimit = DefaultTraceLimit
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks that all configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url must use http or https scheme")
	}
	if u.Host == "" {
		return fmt.Errorf("api.base_url must include a host")
	}

	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must not be negative")
	}

	switch c.Session.Backend {
	case SessionBackendFile, SessionBackendSQLite, SessionBackendMemory:
	default:
		return fmt.Errorf("session.backend must be one of file, sqlite, memory (got %q)", c.Session.Backend)
	}

	if c.Auth.SessionTTL < 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}
	for i, op := range c.Auth.Operators {
		if op.Email == "" {
			return fmt.Errorf("auth.operators[%d].email is required", i)
		}
		if op.PasswordHash == "" {
			return fmt.Errorf("auth.operators[%d].password_hash is required", i)
		}
	}

	if c.Console.TraceLimit < 1 || c.Console.TraceLimit > MaxTraceLimit {
		return fmt.Errorf("console.trace_limit must be between 1 and %d", MaxTraceLimit)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json (got %q)", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.API.TimeoutRaw != "" {
		cfg.API.Timeout, err = time.ParseDuration(cfg.API.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing timeout %q: %w", cfg.API.TimeoutRaw, err)
		}
	}

	if cfg.Auth.SessionTTLRaw != "" {
		cfg.Auth.SessionTTL, err = time.ParseDuration(cfg.Auth.SessionTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing session_ttl %q: %w", cfg.Auth.SessionTTLRaw, err)
		}
	}

	return nil
}
