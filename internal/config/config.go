// Package config provides configuration loading for triggersim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/triggersim/internal/engine"
)

// Config contains all triggersim configuration settings.
type Config struct {
	Engine  EngineConfig  `json:"engine" yaml:"engine"`
	Pacing  PacingConfig  `json:"pacing" yaml:"pacing"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Store   StoreConfig   `json:"store" yaml:"store"`
	MQTT    MQTTConfig    `json:"mqtt" yaml:"mqtt"`
}

// EngineConfig configures the simulation engine.
type EngineConfig struct {
	// MaxSteps bounds the events processed per run. 0 disables the bound.
	MaxSteps int `json:"max_steps" yaml:"max_steps"`
}

// PacingConfig configures wall-clock pacing of the run loop.
type PacingConfig struct {
	// StepDelay is the wall-clock wait before each event is broadcast.
	// 0 runs as fast as possible.
	StepDelay time.Duration `json:"step_delay" yaml:"step_delay"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "trace" additionally logs every observer notification.
	Level string `json:"level" yaml:"level"`
}

// StoreConfig configures run persistence.
type StoreConfig struct {
	// Path is the SQLite database file. Empty disables persistence.
	Path string `json:"path" yaml:"path"`
}

// MQTTConfig configures the MQTT notification publisher.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883. Empty disables MQTT.
	Broker string `json:"broker" yaml:"broker"`

	// TopicPrefix is prepended to every topic.
	TopicPrefix string `json:"topic_prefix" yaml:"topic_prefix"`

	// ClientID identifies this publisher to the broker.
	ClientID string `json:"client_id" yaml:"client_id"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxSteps: engine.DefaultMaxSteps,
		},
		Pacing: PacingConfig{
			StepDelay: 700 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		MQTT: MQTTConfig{
			TopicPrefix: "triggersim",
			ClientID:    "triggersim",
		},
	}
}

// Load loads configuration from path (if non-empty) and applies
// environment variable overrides.
// Order: defaults -> config file -> environment variables
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Unset keys
// keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Engine.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative, got %d", c.Engine.MaxSteps)
	}
	if c.Pacing.StepDelay < 0 {
		return fmt.Errorf("step_delay must be non-negative, got %v", c.Pacing.StepDelay)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	if c.MQTT.Broker != "" && c.MQTT.TopicPrefix == "" {
		return fmt.Errorf("mqtt.topic_prefix must be set when mqtt.broker is configured")
	}
	return nil
}

// SlogLevel maps the configured level to a slog level. "trace" maps below
// Debug.
func (c *Config) SlogLevel() slog.Level {
	switch c.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return slog.LevelDebug - 4
	}
	return slog.LevelInfo
}

// applyEnvOverrides applies environment variable overrides to the config.
// Malformed numeric or duration values are reported rather than ignored.
func applyEnvOverrides(config *Config) error {
	if v := os.Getenv("TRIGGERSIM_STEP_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TRIGGERSIM_STEP_DELAY: %w", err)
		}
		config.Pacing.StepDelay = d
	}

	if v := os.Getenv("TRIGGERSIM_MAX_STEPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TRIGGERSIM_MAX_STEPS: %w", err)
		}
		config.Engine.MaxSteps = n
	}

	if v := os.Getenv("TRIGGERSIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("TRIGGERSIM_DB"); v != "" {
		config.Store.Path = v
	}

	if v := os.Getenv("TRIGGERSIM_MQTT_BROKER"); v != "" {
		config.MQTT.Broker = v
	}
	return nil
}
