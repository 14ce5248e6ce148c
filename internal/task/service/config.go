package service

import (
	"time"

	"github.com/smallbiznis/turfkeeper/internal/config"
)

// Config controls the worker loop.
type Config struct {
	PollInterval      time.Duration
	BatchSize         int
	Concurrency       int
	TaskTimeout       time.Duration
	RecoveryThreshold time.Duration
	MaxAttempts       int
	RetryBackoff      time.Duration
	BackfillSchedule  string
}

func DefaultConfig() Config {
	return Config{
		PollInterval:      2 * time.Second,
		BatchSize:         20,
		Concurrency:       4,
		TaskTimeout:       2 * time.Minute,
		RecoveryThreshold: 15 * time.Minute,
		MaxAttempts:       3,
		RetryBackoff:      10 * time.Second,
		BackfillSchedule:  "30 3 * * *",
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		PollInterval:      cfg.Task.PollInterval,
		BatchSize:         cfg.Task.BatchSize,
		Concurrency:       cfg.Task.Concurrency,
		TaskTimeout:       cfg.Task.TaskTimeout,
		RecoveryThreshold: cfg.Task.RecoveryThreshold,
		MaxAttempts:       cfg.Task.MaxAttempts,
		RetryBackoff:      cfg.Task.RetryBackoff,
		BackfillSchedule:  cfg.Task.BackfillSchedule,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaults.Concurrency
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = defaults.TaskTimeout
	}
	if c.RecoveryThreshold <= 0 {
		c.RecoveryThreshold = defaults.RecoveryThreshold
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaults.RetryBackoff
	}
	// an empty schedule disables backfill
	return c
}
