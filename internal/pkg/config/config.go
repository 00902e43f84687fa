package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is the config file read by Load.
const DefaultPath = "config.yaml"

// EnvPrefix prefixes every environment override. "__" separates levels, so
// TAINT_SERVER__PORT sets server.port.
const EnvPrefix = "TAINT_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port           int    `koanf:"port"`
	RequestTimeout string `koanf:"request_timeout"`
}

// Timeout returns the parsed request timeout. Load has already validated it.
func (s ServerConfig) Timeout() time.Duration {
	d, _ := time.ParseDuration(s.RequestTimeout)
	return d
}

// StorageConfig is the database configuration supporting multiple dialects.
type StorageConfig struct {
	Driver    string     `koanf:"driver"` // sqlite, postgres, mysql
	DSN       string     `koanf:"dsn"`    // Data source name / connection string
	SeedUsers []SeedUser `koanf:"seed_users"`
}

type SeedUser struct {
	Username string `koanf:"username"`
	Email    string `koanf:"email"`
}

type PipelineConfig struct {
	// AsyncDelay is the scheduled continuation delay of the async hop.
	AsyncDelay string `koanf:"async_delay"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

var defaults = map[string]any{
	"server.port":            3000,
	"server.request_timeout": "30s",
	"storage.driver":         "sqlite",
	"storage.dsn":            "file:taintpath.db",
	"pipeline.async_delay":   "10ms",
	"logging.level":          "info",
	"logging.format":         "json",
	"telemetry.enabled":      false,
	"telemetry.service_name": "taintpath",
}

// Load reads config.yaml from the working directory, if present, then
// applies environment overrides and defaults.
func Load() (*Config, error) {
	return LoadFile(DefaultPath)
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	// Try to load from the config file first
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	for key, v := range defaults {
		if !k.Exists(key) {
			k.Set(key, v)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute environment variables in the connection string
	cfg.Storage.DSN = substituteEnvVars(cfg.Storage.DSN)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	for key, v := range map[string]string{
		"server.request_timeout": c.Server.RequestTimeout,
		"pipeline.async_delay":   c.Pipeline.AsyncDelay,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		if d < 0 {
			return fmt.Errorf("invalid %s %q: must not be negative", key, v)
		}
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging.format %q (must be 'json' or 'text')", c.Logging.Format)
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
