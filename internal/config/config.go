package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up by LoadFromDir.
const FileName = "cssplay.yaml"

// Config represents the cssplay configuration
type Config struct {
	Title      string           `yaml:"title"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Sandbox    SandboxConfig    `yaml:"sandbox"`
	Playground PlaygroundConfig `yaml:"playground"`
	API        *APIConfig       `yaml:"api,omitempty"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port  int    `yaml:"port" validate:"min=0,max=65535"`
	Host  string `yaml:"host"`
	Debug bool   `yaml:"debug"`
}

// StorageConfig selects where toggle states and the last good source of each
// client are kept.
type StorageConfig struct {
	Backend  string `yaml:"backend" validate:"omitempty,oneof=none memory sqlite postgres redis"`
	Path     string `yaml:"path,omitempty"`     // For sqlite: database file (default: ./cssplay.db)
	DSN      string `yaml:"dsn,omitempty"`      // For postgres: connection string (env vars expanded)
	Addr     string `yaml:"addr,omitempty"`     // For redis: host:port
	Password string `yaml:"password,omitempty"` // For redis (env vars expanded)
	DB       int    `yaml:"db,omitempty" validate:"min=0"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// SandboxConfig bounds execution of generated code.
type SandboxConfig struct {
	Timeout string `yaml:"timeout,omitempty"` // e.g. "2s". Default: 2s
}

// PlaygroundConfig holds editor defaults.
type PlaygroundConfig struct {
	// SourceFile replaces the built-in default source shown to new clients.
	SourceFile string `yaml:"source_file,omitempty"`
	// Watch pushes changes of SourceFile into every open session.
	Watch bool `yaml:"watch"`
	// CacheTTL bounds how long materialized CSS is reused (e.g. "10m").
	CacheTTL string `yaml:"cache_ttl,omitempty"`
}

// APIConfig holds JSON API configuration
type APIConfig struct {
	Enabled   bool             `yaml:"enabled"`
	CORS      *CORSConfig      `yaml:"cors,omitempty"`
	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty"`
}

// CORSConfig holds CORS configuration for the API
type CORSConfig struct {
	Origins []string `yaml:"origins,omitempty"` // Allowed origins (e.g., ["http://localhost:3000", "*"])
}

// RateLimitConfig holds rate limiting configuration for the API
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty" validate:"min=0"` // default: 10
	Burst             int     `yaml:"burst,omitempty" validate:"min=0"`               // default: 20
}

// GetCORSOrigins returns the configured CORS origins, or nil if not configured
func (c *APIConfig) GetCORSOrigins() []string {
	if c == nil || c.CORS == nil {
		return nil
	}
	return c.CORS.Origins
}

// GetRateLimitRPS returns the rate limit in requests per second (default: 10)
func (c *APIConfig) GetRateLimitRPS() float64 {
	if c == nil || c.RateLimit == nil || c.RateLimit.RequestsPerSecond <= 0 {
		return 10
	}
	return c.RateLimit.RequestsPerSecond
}

// GetRateLimitBurst returns the burst size (default: 20)
func (c *APIConfig) GetRateLimitBurst() int {
	if c == nil || c.RateLimit == nil || c.RateLimit.Burst <= 0 {
		return 20
	}
	return c.RateLimit.Burst
}

// IsAPIEnabled returns whether the API is enabled
func (c *Config) IsAPIEnabled() bool {
	return c.API != nil && c.API.Enabled
}

// GetTimeout returns the parsed sandbox timeout (default: 2s)
func (c SandboxConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 2*time.Second)
}

// GetCacheTTL returns the artifact cache TTL (default: 10m)
func (c PlaygroundConfig) GetCacheTTL() time.Duration {
	return parseDuration(c.CacheTTL, 10*time.Minute)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetDSN returns the postgres DSN with environment variable expansion
func (c StorageConfig) GetDSN() string {
	return os.ExpandEnv(c.DSN)
}

// GetPassword returns the redis password with environment variable expansion
func (c StorageConfig) GetPassword() string {
	return os.ExpandEnv(c.Password)
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Title: "CSSX Playground",
		Server: ServerConfig{
			Port:  8080,
			Host:  "localhost",
			Debug: false,
		},
		Storage: StorageConfig{
			Backend: "sqlite",
			Path:    "cssplay.db",
		},
		Sandbox: SandboxConfig{
			Timeout: "2s",
		},
		Playground: PlaygroundConfig{
			CacheTTL: "10m",
		},
	}
}

var validate = validator.New()

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Sandbox.Timeout != "" {
		if _, err := time.ParseDuration(c.Sandbox.Timeout); err != nil {
			return fmt.Errorf("invalid config: sandbox.timeout: %w", err)
		}
	}
	if c.Playground.CacheTTL != "" {
		if _, err := time.ParseDuration(c.Playground.CacheTTL); err != nil {
			return fmt.Errorf("invalid config: playground.cache_ttl: %w", err)
		}
	}
	if c.Playground.Watch && c.Playground.SourceFile == "" {
		return fmt.Errorf("invalid config: playground.watch requires playground.source_file")
	}
	return nil
}

// Load loads configuration from a YAML file
// If the file doesn't exist, returns the default configuration
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig() // Start with defaults
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Relative paths are resolved against the config file's directory.
	dir := filepath.Dir(configPath)
	if p := config.Playground.SourceFile; p != "" && !filepath.IsAbs(p) {
		config.Playground.SourceFile = filepath.Join(dir, p)
	}

	return config, nil
}

// LoadFromDir looks for cssplay.yaml in the given directory
// If none is found, returns the default configuration
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}

// Save writes the configuration to a YAML file
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
