package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/opentraa/traa-mcp/internal/logger"
)

// Config holds the server configuration
type Config struct {
	// SSEPort is the listen port for the SSE transport
	SSEPort int `json:"sse_port" yaml:"sse_port"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `json:"log_level" yaml:"log_level"`

	// DefaultFormat is the snapshot format used when a tool call omits one
	DefaultFormat string `json:"default_format" yaml:"default_format"`

	// DefaultQuality is the JPEG quality used when a tool call omits one.
	// 60 keeps typical snapshots under ~1MB, which matters for model input.
	DefaultQuality int `json:"default_quality" yaml:"default_quality"`

	// Backend forces a capture backend ("x11", "portal"); empty means
	// auto-detect
	Backend string `json:"backend" yaml:"backend"`
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		SSEPort:        3001,
		LogLevel:       "info",
		DefaultFormat:  "jpeg",
		DefaultQuality: 60,
	}
}

// DefaultPath returns the default config file location
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "traa-mcp", "config.yaml"), nil
}

// Load reads the configuration from the given path, falling back to
// defaults when the file does not exist. An empty path means the default
// location.
func Load(path string) (*Config, error) {
	log := logger.WithComponent("config")

	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug().Str("path", path).Msg("No config file, using defaults")
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Info().Str("path", path).Msg("Config loaded")
	return cfg, nil
}

// Validate checks that the loaded values are usable
func (c *Config) Validate() error {
	if c.SSEPort <= 0 || c.SSEPort > 65535 {
		return fmt.Errorf("invalid sse_port: %d", c.SSEPort)
	}
	if c.DefaultFormat != "jpeg" && c.DefaultFormat != "png" {
		return fmt.Errorf("invalid default_format: %q (must be jpeg or png)", c.DefaultFormat)
	}
	if c.DefaultQuality < 1 || c.DefaultQuality > 100 {
		return fmt.Errorf("invalid default_quality: %d (must be 1-100)", c.DefaultQuality)
	}
	switch c.Backend {
	case "", "x11", "portal":
	default:
		return fmt.Errorf("invalid backend: %q (must be x11 or portal)", c.Backend)
	}
	return nil
}

// Save writes the configuration to the given path, creating parent
// directories as needed
func (c *Config) Save(path string) error {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
