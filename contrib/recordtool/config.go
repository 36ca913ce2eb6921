package recordtool

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Metrics sinks selectable in the config.
const (
	MetricsNone       = "none"
	MetricsBasic      = "basic"
	MetricsPrometheus = "prometheus"
)

// Config holds the settings shared by every recordtool command.
type Config struct {
	// Minimum log level: debug, info, warn or error
	LogLevel string `yaml:"log_level"`
	// Log file path; logs go to stderr when empty
	LogFile string `yaml:"log_file,omitempty"`
	// YAML schema consulted when encoding and decoding
	SchemaFile string `yaml:"schema_file,omitempty"`
	// Directory of the record store used by the store commands
	DataDir string `yaml:"data_dir"`
	// Metrics sink: none, basic or prometheus
	Metrics string `yaml:"metrics"`
	// Factor records are padded by when encoded; values of 1 or less
	// disable padding
	PadOverAllocation float64 `yaml:"pad_over_allocation,omitempty"`
	// Cluster new records are stored in
	Cluster int32 `yaml:"cluster"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		LogLevel: "warn",
		DataDir:  "./data",
		Metrics:  MetricsNone,
		Cluster:  1,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	switch c.Metrics {
	case MetricsNone, MetricsBasic, MetricsPrometheus:
	default:
		return fmt.Errorf("unknown metrics sink %q", c.Metrics)
	}
	if c.PadOverAllocation < 0 {
		return fmt.Errorf("pad_over_allocation must not be negative")
	}
	if c.Cluster < 0 {
		return fmt.Errorf("cluster must not be negative")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	return nil
}

// LoadConfig reads a YAML config. Settings missing from the file keep
// their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := NewConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

func SaveConfig(config *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
