// Package config provides configuration loading for buildscale.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config is the complete tool configuration. Values come from defaults,
// then an optional buildscale.yaml, then command-line flags.
type Config struct {
	// Out is the destination root the scale partitions are written under.
	Out string `yaml:"out"`
	// Templates is the directory holding the rule template files.
	Templates string `yaml:"templates"`
	// Scales optionally restricts the run to a subset of the supported
	// factor set, as tokens like "2" or "3:2".
	Scales []string `yaml:"scales"`
	// Jobs bounds concurrently processed groups (default: NumCPU).
	Jobs int `yaml:"jobs"`
	// Include and Exclude filter discovered files (doublestar patterns).
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
	// Report is an optional path for the machine-readable JSON report.
	Report string `yaml:"report"`
}

// DefaultConfig returns a Config with sensible defaults. The default
// output directory matches the companion package's installation layout.
func DefaultConfig() *Config {
	return &Config{
		Out:       "Scaleable Build Shapes",
		Templates: "templates",
		Jobs:      runtime.NumCPU(),
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Out == "" {
		return fmt.Errorf("out is required")
	}
	if c.Templates == "" {
		return fmt.Errorf("templates is required")
	}
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}
