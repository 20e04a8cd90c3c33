package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

var ErrInvalid = errors.New("invalid configuration")

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Proxy     ProxyConfig
	Bridge    BridgeConfig
	Session   SessionConfig
	Browser   BrowserConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"4444"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	// PublicURL is how browsers reach the proxy; derived from Port when empty
	PublicURL   string `envconfig:"PUBLIC_URL"`
	BodyLimitMB int    `envconfig:"BODY_LIMIT_MB" default:"50"`
}

// ProxyConfig holds forward-proxy configuration.
type ProxyConfig struct {
	Prefix         string `envconfig:"PREFIX" default:"/web-driverify"`
	ForwardEnabled bool   `envconfig:"FORWARD_ENABLED" default:"true"`
	InjectRuntime  bool   `envconfig:"INJECT_RUNTIME" default:"true"`
}

// BridgeConfig holds browser bridge deadlines.
type BridgeConfig struct {
	Timeout  time.Duration `envconfig:"BRIDGE_TIMEOUT" default:"30s"`
	PollWait time.Duration `envconfig:"BRIDGE_POLL_WAIT" default:"25s"`
}

// SessionConfig holds session lifecycle configuration.
type SessionConfig struct {
	IdleTimeout  time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"30m"`
	ReapInterval time.Duration `envconfig:"SESSION_REAP_INTERVAL" default:"1m"`
	OutboxSize   int           `envconfig:"SESSION_OUTBOX_SIZE" default:"16"`
}

// BrowserConfig holds the command started for each new session.
type BrowserConfig struct {
	Command string   `envconfig:"BROWSER_CMD"`
	Args    []string `envconfig:"BROWSER_ARGS"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables. When CONFIG_FILE
// names a YAML or TOML file, its keys fill in variables the environment
// leaves unset.
func Load() (*Config, error) {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := ApplyFile(path); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "4444",
			Host:        "0.0.0.0",
			BodyLimitMB: 50,
		},
		Proxy: ProxyConfig{
			Prefix:         "/web-driverify",
			ForwardEnabled: true,
			InjectRuntime:  true,
		},
		Bridge: BridgeConfig{
			Timeout:  30 * time.Second,
			PollWait: 25 * time.Second,
		},
		Session: SessionConfig{
			IdleTimeout:  30 * time.Minute,
			ReapInterval: time.Minute,
			OutboxSize:   16,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

func (c *Config) normalize() {
	c.Proxy.Prefix = "/" + strings.Trim(c.Proxy.Prefix, "/")
	c.Server.PublicURL = strings.TrimRight(c.Server.PublicURL, "/")
}

// Validate reports settings the server cannot run with
func (c *Config) Validate() error {
	switch {
	case c.Proxy.Prefix == "/":
		return fmt.Errorf("%w: PREFIX must not be the root path", ErrInvalid)
	case c.Server.BodyLimitMB <= 0:
		return fmt.Errorf("%w: BODY_LIMIT_MB must be positive", ErrInvalid)
	case c.Bridge.Timeout < 0 || c.Bridge.PollWait <= 0:
		return fmt.Errorf("%w: bridge deadlines must be positive", ErrInvalid)
	case c.Session.OutboxSize <= 0:
		return fmt.Errorf("%w: SESSION_OUTBOX_SIZE must be positive", ErrInvalid)
	}
	return nil
}

// BaseURL is the address browsers use to reach the proxy
func (s ServerConfig) BaseURL() string {
	if s.PublicURL != "" {
		return s.PublicURL
	}
	host := s.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + host + ":" + s.Port
}

// Addr is the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// BodyLimit returns the request body limit in bytes
func (s ServerConfig) BodyLimit() int64 {
	return int64(s.BodyLimitMB) << 20
}
