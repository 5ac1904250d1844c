package executor

import "time"

// Config controls the worker pool.
type Config struct {
	// Count is the number of worker goroutines.
	Count           int           `mapstructure:"count"`
	ProcessTimeout  time.Duration `mapstructure:"process_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// Embedded runs the pool inside the API server process.
	Embedded bool `mapstructure:"embedded"`
	// StoreRetries bounds how often a failed terminal write is retried.
	StoreRetries int `mapstructure:"store_retries"`
}

// DefaultConfig returns the pool defaults.
func DefaultConfig() Config {
	return Config{
		Count:           4,
		ProcessTimeout:  60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		Embedded:        true,
		StoreRetries:    5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Count <= 0 {
		c.Count = d.Count
	}
	if c.ProcessTimeout <= 0 {
		c.ProcessTimeout = d.ProcessTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.StoreRetries < 0 {
		c.StoreRetries = 0
	}
	return c
}
