// ABOUTME: Configuration loading and parsing for parley
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete parley configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Sync    SyncConfig    `yaml:"sync"`
	Prefs   PrefsConfig   `yaml:"prefs"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the REST and push endpoint addresses
type ServerConfig struct {
	BaseURL string `yaml:"base_url"`
	WSURL   string `yaml:"ws_url"` // derived from base_url when empty
}

// AuthConfig holds credential configuration
type AuthConfig struct {
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"` // read at load time when token is empty
}

// SyncConfig holds sync engine tuning
type SyncConfig struct {
	PageSize            int           `yaml:"page_size"`
	ReconnectBackoffMin time.Duration `yaml:"-"`
	ReconnectBackoffMax time.Duration `yaml:"-"`
	DedupeTTL           time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	ReconnectBackoffMinRaw string `yaml:"reconnect_backoff_min"`
	ReconnectBackoffMaxRaw string `yaml:"reconnect_backoff_max"`
	DedupeTTLRaw           string `yaml:"dedupe_ttl"`
}

// PrefsConfig holds the local preference database location
type PrefsConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if cfg.Auth.Token == "" && cfg.Auth.TokenFile != "" {
		raw, err := os.ReadFile(cfg.Auth.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("reading token file: %w", err)
		}
		cfg.Auth.Token = strings.TrimSpace(string(raw))
	}

	if cfg.Server.WSURL == "" {
		cfg.Server.WSURL = deriveWSURL(cfg.Server.BaseURL)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
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

// deriveWSURL maps an http(s) base URL onto its ws(s) counterpart.
func deriveWSURL(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return ""
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	if c.Server.WSURL == "" {
		return fmt.Errorf("server.ws_url is required (could not derive it from server.base_url)")
	}

	if c.Auth.Token == "" && c.Auth.TokenFile == "" {
		return fmt.Errorf("auth.token or auth.token_file is required")
	}

	if c.Sync.PageSize < 0 {
		return fmt.Errorf("sync.page_size must not be negative")
	}

	if c.Prefs.Path == "" {
		return fmt.Errorf("prefs.path is required")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Sync.ReconnectBackoffMinRaw != "" {
		cfg.Sync.ReconnectBackoffMin, err = time.ParseDuration(cfg.Sync.ReconnectBackoffMinRaw)
		if err != nil {
			return fmt.Errorf("parsing reconnect_backoff_min %q: %w", cfg.Sync.ReconnectBackoffMinRaw, err)
		}
	}

	if cfg.Sync.ReconnectBackoffMaxRaw != "" {
		cfg.Sync.ReconnectBackoffMax, err = time.ParseDuration(cfg.Sync.ReconnectBackoffMaxRaw)
		if err != nil {
			return fmt.Errorf("parsing reconnect_backoff_max %q: %w", cfg.Sync.ReconnectBackoffMaxRaw, err)
		}
	}

	if cfg.Sync.DedupeTTLRaw != "" {
		cfg.Sync.DedupeTTL, err = time.ParseDuration(cfg.Sync.DedupeTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing dedupe_ttl %q: %w", cfg.Sync.DedupeTTLRaw, err)
		}
	}

	return nil
}
