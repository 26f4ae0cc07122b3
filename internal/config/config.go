// Package config loads and validates the process configuration from files,
// environment variables and flags.
package config

import (
	"fmt"

	"github.com/propfoto/propfoto/internal/enhance"
	"github.com/propfoto/propfoto/internal/orchestrator"
)

// Config is the full configuration surface of the service. Out-of-range
// values are a startup-time fatal error, never a per-request one.
type Config struct {
	// LogLevel controls slog verbosity: debug, info, warn, error.
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	Verbose bool `mapstructure:"verbose" yaml:"verbose"`

	// OutputDir is the root of the filesystem blob store for enhanced images.
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`

	Pipeline     enhance.Config      `mapstructure:"pipeline" yaml:"pipeline"`
	Orchestrator orchestrator.Config `mapstructure:"orchestrator" yaml:"orchestrator"`

	// Profiles are overrides layered on top of the built-in region/scene
	// profiles; each entry is matched by its region and scene tags.
	Profiles []enhance.Params `mapstructure:"profiles" yaml:"profiles"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:     "info",
		LogFormat:    "text",
		Verbose:      false,
		OutputDir:    "output",
		Pipeline:     enhance.DefaultConfig(),
		Orchestrator: orchestrator.DefaultConfig(),
	}
}

// Validate checks the whole configuration tree.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level: %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format: %q", c.LogFormat)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.Orchestrator.Validate(); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	for i, p := range c.Profiles {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("profiles[%d] (%s/%s): %w", i, p.Region, p.Scene, err)
		}
	}
	return nil
}

// EnhanceProfiles merges the configured overrides over the built-in
// region/scene profile table.
func (c *Config) EnhanceProfiles() enhance.Profiles {
	profiles := enhance.DefaultProfiles()
	for _, p := range c.Profiles {
		profiles[enhance.ProfileKey{Region: p.Region, Scene: p.Scene}] = p
	}
	return profiles
}
