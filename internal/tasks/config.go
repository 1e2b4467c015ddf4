package tasks

import (
	"time"

	"github.com/mrlokans/courseimport/internal/config"
)

// Config holds configuration for the task queue system.
type Config struct {
	// Workers is the number of concurrent task workers. Default: 1
	Workers int

	// MaxRetries is the maximum attempts for an import task. Default: 3
	MaxRetries int

	// RetryDelay is the backoff duration between import attempts. Default: 1m
	RetryDelay time.Duration

	// TaskTimeout bounds one import attempt. Default: 2h
	TaskTimeout time.Duration

	// ReleaseAfter is when stuck tasks are released back to queue. Default: 3h
	ReleaseAfter time.Duration

	// CleanupInterval is how often to clean up completed tasks. Default: 1h
	CleanupInterval time.Duration

	// RetentionDuration is how long to keep completed tasks. Default: 72h
	RetentionDuration time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:           1,
		MaxRetries:        3,
		RetryDelay:        1 * time.Minute,
		TaskTimeout:       2 * time.Hour,
		ReleaseAfter:      3 * time.Hour,
		CleanupInterval:   1 * time.Hour,
		RetentionDuration: 72 * time.Hour,
	}
}

// FromConfig fills unset values of the application settings with the defaults
func FromConfig(cfg config.Tasks) Config {
	c := DefaultConfig()
	if cfg.Workers > 0 {
		c.Workers = cfg.Workers
	}
	if cfg.MaxRetries > 0 {
		c.MaxRetries = cfg.MaxRetries
	}
	if cfg.RetryDelay > 0 {
		c.RetryDelay = cfg.RetryDelay
	}
	if cfg.TaskTimeout > 0 {
		c.TaskTimeout = cfg.TaskTimeout
	}
	if cfg.ReleaseAfter > 0 {
		c.ReleaseAfter = cfg.ReleaseAfter
	}
	if cfg.CleanupInterval > 0 {
		c.CleanupInterval = cfg.CleanupInterval
	}
	if cfg.RetentionDuration > 0 {
		c.RetentionDuration = cfg.RetentionDuration
	}
	return c
}
