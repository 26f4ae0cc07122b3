package orchestrator

import (
	"fmt"
	"time"
)

// Config bounds the worker pool and the retry behavior.
type Config struct {
	// MaxConcurrent caps the number of pipeline runs executing at once.
	MaxConcurrent int `mapstructure:"max_concurrent" yaml:"max_concurrent" json:"max_concurrent"`

	// RetryBudget is the number of retries after the first attempt; a task
	// failing transiently on every attempt ends Errored after
	// RetryBudget+1 attempts.
	RetryBudget int `mapstructure:"retry_budget" yaml:"retry_budget" json:"retry_budget"`

	// RetryBackoff is the delay before the first retry; it doubles on each
	// subsequent one.
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff" json:"retry_backoff"`

	// StorageTimeout bounds each call to the blob and metadata stores.
	StorageTimeout time.Duration `mapstructure:"storage_timeout" yaml:"storage_timeout" json:"storage_timeout"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:  4,
		RetryBudget:    2,
		RetryBackoff:   500 * time.Millisecond,
		StorageTimeout: 10 * time.Second,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", c.MaxConcurrent)
	}
	if c.RetryBudget < 0 {
		return fmt.Errorf("retry_budget must not be negative, got %d", c.RetryBudget)
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry_backoff must not be negative, got %s", c.RetryBackoff)
	}
	if c.StorageTimeout <= 0 {
		return fmt.Errorf("storage_timeout must be positive, got %s", c.StorageTimeout)
	}
	return nil
}
