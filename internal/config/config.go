// Package config handles configuration loading for logsentry.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"logsentry/internal/correlation"
	"logsentry/internal/kafka"
	"logsentry/internal/logging"
	"logsentry/internal/middleware"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when LOGSENTRY_CONFIG_PATH is not set.
const DefaultPath = "configs/config.yaml"

// Config holds the complete application configuration.
type Config struct {
	Server          ServerConfig               `yaml:"server"`
	Upload          UploadConfig               `yaml:"upload"`
	RateLimit       middleware.RateLimitConfig `yaml:"rate_limit"`
	SecurityHeaders middleware.HeadersConfig   `yaml:"security_headers"`
	Detection       DetectionConfig            `yaml:"detection"`
	Logging         LoggingConfig              `yaml:"logging"`
	Kafka           kafka.Config               `yaml:"kafka" validate:"-"`
	Production      bool                       `yaml:"production"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// UploadConfig controls where uploaded files are staged during analysis.
type UploadConfig struct {
	Dir     string `yaml:"dir" validate:"required"`
	MaxSize int64  `yaml:"max_size" validate:"min=1"` // bytes
}

// DetectionConfig holds the fixed detection policy inputs.
type DetectionConfig struct {
	Exclusions []correlation.ExclusionRule `yaml:"exclusions" validate:"dive"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Upload: UploadConfig{
			Dir:     "uploads",
			MaxSize: 32 * 1024 * 1024, // 32MB
		},
		RateLimit:       middleware.DefaultRateLimitConfig(),
		SecurityHeaders: middleware.DefaultHeadersConfig(),
		Detection: DetectionConfig{
			Exclusions: correlation.DefaultExclusions(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Kafka: *kafka.DefaultConfig(),
	}
}

// Load reads the file named by LOGSENTRY_CONFIG_PATH (or DefaultPath) and
// applies environment overrides. A missing file yields the defaults.
func Load() (*Config, error) {
	configPath := os.Getenv("LOGSENTRY_CONFIG_PATH")
	if configPath == "" {
		configPath = DefaultPath
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path, then applies environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// File doesn't exist, use defaults
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if port := os.Getenv("LOGSENTRY_HTTP_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid LOGSENTRY_HTTP_PORT %q: %w", port, err)
		}
		c.Server.HTTPPort = p
	}

	if level := os.Getenv("LOGSENTRY_LOG_LEVEL"); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}

	if dir := os.Getenv("LOGSENTRY_UPLOAD_DIR"); dir != "" {
		c.Upload.Dir = dir
	}

	if brokers := os.Getenv("LOGSENTRY_KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = splitAndTrim(brokers, ",")
		c.Kafka.Enabled = len(c.Kafka.Brokers) > 0
	}

	if prod := os.Getenv("LOGSENTRY_PRODUCTION"); prod != "" {
		v, err := strconv.ParseBool(prod)
		if err != nil {
			return fmt.Errorf("invalid LOGSENTRY_PRODUCTION %q: %w", prod, err)
		}
		c.Production = v
	}

	return nil
}

// splitAndTrim splits s by sep, dropping empty parts.
func splitAndTrim(s, sep string) []string {
	parts := make([]string, 0)
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Kafka.Enabled {
		if err := c.Kafka.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Policy builds the detection policy from the configured exclusions.
func (c *Config) Policy() *correlation.Policy {
	return correlation.NewPolicy(c.Detection.Exclusions)
}

// LoggerConfig returns the logging settings in the form logging.New expects.
func (c *Config) LoggerConfig() logging.Config {
	return logging.Config{Level: c.Logging.Level, Format: c.Logging.Format}
}
