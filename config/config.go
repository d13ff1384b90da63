// Package config loads gateway settings from a YAML file and the environment.
//
// Values in the file may reference environment variables as ${VAR_NAME}.
// A fixed set of environment variables override the file afterwards.
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"

	minSecretLength = 32
)

// Config is the complete gateway configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Auth       AuthConfig       `yaml:"auth"`
	Registry   RegistryConfig   `yaml:"registry"`
	Relay      RelayConfig      `yaml:"relay"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	NonceStore NonceStoreConfig `yaml:"nonce_store"`
	Events     EventsConfig     `yaml:"events"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	GinMode  string `yaml:"gin_mode"`
}

// AuthConfig holds handshake and session settings
type AuthConfig struct {
	JWTSecret      string   `yaml:"jwt_secret"`
	Issuer         string   `yaml:"issuer"`
	NonceTTL       Duration `yaml:"nonce_ttl"`
	SessionTTL     Duration `yaml:"session_ttl"`
	AllowedDomains []string `yaml:"allowed_domains"`
}

// RegistryConfig holds the asset registry endpoint
type RegistryConfig struct {
	RPCURL  string   `yaml:"rpc_url"`
	Timeout Duration `yaml:"timeout"`
}

// RelayConfig holds the chat relay policy
type RelayConfig struct {
	Timeout              Duration `yaml:"timeout"`
	FallbackEndpoint     string   `yaml:"fallback_endpoint"`
	AllowUnauthenticated bool     `yaml:"allow_unauthenticated"`
	RevalidateOwnership  bool     `yaml:"revalidate_ownership"`
	BlockPrivateNetworks bool     `yaml:"block_private_networks"`
}

// RateLimitConfig holds the per-client limits of the auth routes
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// NonceStoreConfig selects the nonce backend
type NonceStoreConfig struct {
	Driver string `yaml:"driver"`
}

// EventsConfig selects the event backend
type EventsConfig struct {
	Driver string `yaml:"driver"`
	Topic  string `yaml:"topic"`
}

// RedisConfig holds the Redis connection shared by the Redis backends
type RedisConfig struct {
	URL string `yaml:"url"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a time.Duration written as a Go duration string
type Duration time.Duration

// UnmarshalYAML parses values such as "5m" or "24h"
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration in its string form
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Env reads environment variables
type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

// Default returns the configuration used when nothing overrides it
func Default() Config {
	return Config{
		Server: ServerConfig{
			HTTPAddr: ":9000",
			GinMode:  "release",
		},
		Auth: AuthConfig{
			Issuer:     "agentgate",
			NonceTTL:   Duration(5 * time.Minute),
			SessionTTL: Duration(24 * time.Hour),
		},
		Registry: RegistryConfig{
			Timeout: Duration(10 * time.Second),
		},
		Relay: RelayConfig{
			Timeout:              Duration(15 * time.Second),
			FallbackEndpoint:     "http://localhost:4000",
			AllowUnauthenticated: true,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             10,
		},
		NonceStore: NonceStoreConfig{Driver: DriverMemory},
		Events: EventsConfig{
			Driver: DriverMemory,
			Topic:  "agentgate.auth",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration file at path, if any, applies environment
// overrides from the process environment and validates the result
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, osEnv{})
}

// LoadFromEnv builds the configuration from defaults and env alone
func LoadFromEnv(env Env) (*Config, error) {
	return LoadWithEnv("", env)
}

// LoadWithEnv is Load with an explicit environment
func LoadWithEnv(path string, env Env) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		expanded := expandEnvVars(string(data), env)
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnv(&cfg, env); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or nothing if unset
func expandEnvVars(s string, env Env) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return env.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func applyEnv(cfg *Config, env Env) error {
	overrides := map[string]*string{
		"HTTP_ADDR":           &cfg.Server.HTTPAddr,
		"GIN_MODE":            &cfg.Server.GinMode,
		"JWT_SECRET":          &cfg.Auth.JWTSecret,
		"RPC_URL":             &cfg.Registry.RPCURL,
		"REDIS_URL":           &cfg.Redis.URL,
		"DEMO_AGENT_ENDPOINT": &cfg.Relay.FallbackEndpoint,
		"LOG_LEVEL":           &cfg.Logging.Level,
		"LOG_FORMAT":          &cfg.Logging.Format,
	}
	for key, field := range overrides {
		if raw := env.Getenv(key); raw != "" {
			*field = raw
		}
	}

	if raw := env.Getenv("ALLOW_UNAUTHENTICATED"); raw != "" {
		allow, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid ALLOW_UNAUTHENTICATED %q", raw)
		}
		cfg.Relay.AllowUnauthenticated = allow
	}

	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if len(c.Auth.JWTSecret) < minSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", minSecretLength)
	}
	if c.Auth.NonceTTL <= 0 {
		return fmt.Errorf("auth.nonce_ttl must be positive")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}

	if c.Registry.RPCURL == "" {
		return fmt.Errorf("registry.rpc_url is required")
	}
	if c.Registry.Timeout <= 0 {
		return fmt.Errorf("registry.timeout must be positive")
	}

	if c.Relay.Timeout <= 0 {
		return fmt.Errorf("relay.timeout must be positive")
	}
	if u, err := url.Parse(c.Relay.FallbackEndpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("relay.fallback_endpoint must be an http(s) URL")
	}

	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit values must be positive")
	}

	drivers := []struct{ name, value string }{
		{"nonce_store.driver", c.NonceStore.Driver},
		{"events.driver", c.Events.Driver},
	}
	for _, d := range drivers {
		switch d.value {
		case DriverMemory:
		case DriverRedis:
			if c.Redis.URL == "" {
				return fmt.Errorf("redis.url is required when %s is redis", d.name)
			}
		default:
			return fmt.Errorf("%s must be %q or %q", d.name, DriverMemory, DriverRedis)
		}
	}

	if c.Events.Topic == "" {
		return fmt.Errorf("events.topic is required")
	}

	return nil
}
