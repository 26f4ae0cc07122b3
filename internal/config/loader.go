package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "propfoto"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "PROPFOTO"
)

// Loader handles loading configuration from files, environment variables
// and bound command-line flags.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so cobra flag
// bindings made by the command layer are visible.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// Load resolves defaults, an optional config file and environment
// variables, then unmarshals and validates the result.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	l.addConfigPaths()
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// Missing config file is fine: defaults and env vars carry the run.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return l.unmarshalAndValidate()
}

// LoadWithFile loads configuration from a specific file path. An empty path
// falls back to the standard search.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	l.v.SetConfigFile(configFile)
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	return l.unmarshalAndValidate()
}

func (l *Loader) unmarshalAndValidate() (*Config, error) {
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

// GetConfigFileUsed returns the path of the config file used, if any.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

func (l *Loader) addConfigPaths() {
	l.v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
	}

	l.v.AddConfigPath("/etc/propfoto")

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		l.v.AddConfigPath(filepath.Join(configDir, "propfoto"))
	} else if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(filepath.Join(home, ".config", "propfoto"))
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers the default value for every configuration key so
// environment variables can override each of them individually.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("log_format", defaults.LogFormat)
	l.v.SetDefault("verbose", defaults.Verbose)
	l.v.SetDefault("output_dir", defaults.OutputDir)

	l.v.SetDefault("pipeline.min_width", defaults.Pipeline.MinWidth)
	l.v.SetDefault("pipeline.min_height", defaults.Pipeline.MinHeight)
	l.v.SetDefault("pipeline.max_width", defaults.Pipeline.MaxWidth)
	l.v.SetDefault("pipeline.max_height", defaults.Pipeline.MaxHeight)
	l.v.SetDefault("pipeline.jpeg_quality", defaults.Pipeline.JPEGQuality)

	l.v.SetDefault("pipeline.thresholds.min_mean_brightness", defaults.Pipeline.Thresholds.MinMeanBrightness)
	l.v.SetDefault("pipeline.thresholds.max_contrast_ratio", defaults.Pipeline.Thresholds.MaxContrastRatio)
	l.v.SetDefault("pipeline.thresholds.min_dynamic_range", defaults.Pipeline.Thresholds.MinDynamicRange)
	l.v.SetDefault("pipeline.thresholds.max_exposure_bias", defaults.Pipeline.Thresholds.MaxExposureBias)
	l.v.SetDefault("pipeline.thresholds.min_quality_score", defaults.Pipeline.Thresholds.MinQualityScore)

	l.v.SetDefault("pipeline.weights.brightness", defaults.Pipeline.Weights.Brightness)
	l.v.SetDefault("pipeline.weights.contrast", defaults.Pipeline.Weights.Contrast)
	l.v.SetDefault("pipeline.weights.dynamic_range", defaults.Pipeline.Weights.DynamicRange)

	l.v.SetDefault("orchestrator.max_concurrent", defaults.Orchestrator.MaxConcurrent)
	l.v.SetDefault("orchestrator.retry_budget", defaults.Orchestrator.RetryBudget)
	l.v.SetDefault("orchestrator.retry_backoff", defaults.Orchestrator.RetryBackoff)
	l.v.SetDefault("orchestrator.storage_timeout", defaults.Orchestrator.StorageTimeout)
}

// GenerateDefaultConfigFile writes a config file populated with defaults.
func GenerateDefaultConfigFile(filename string) error {
	loader := &Loader{v: viper.New()}
	loader.setDefaults()

	if filename == "" {
		filename = "propfoto.yaml"
	}
	return loader.v.WriteConfigAs(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
		paths = append(paths, filepath.Join(home, ".config", "propfoto"))
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "propfoto"))
	}

	paths = append(paths, "/etc/propfoto")

	return paths
}
