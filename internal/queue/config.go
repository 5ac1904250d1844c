package queue

import "time"

// Config holds configuration for the queue system.
type Config struct {
	// Type selects the queue backend: "memory" (default), "redis" or "sqs".
	Type          string        `mapstructure:"type"`
	Capacity      int           `mapstructure:"capacity"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Stream        string        `mapstructure:"stream"`
	Group         string        `mapstructure:"group"`
	Consumer      string        `mapstructure:"consumer"`
	BlockTimeout  time.Duration `mapstructure:"block_timeout"`

	// ClaimIdle is how long a Redis entry may stay unacknowledged before
	// another consumer claims it. Keep it above worker.process_timeout.
	ClaimIdle time.Duration `mapstructure:"claim_idle"`

	// SQS-specific config
	SQSQueueURL   string `mapstructure:"sqs_queue_url"`
	SQSRegion     string `mapstructure:"sqs_region"`
	SQSWaitTime   int32  `mapstructure:"sqs_wait_time"`          // long poll seconds, default 20
	SQSVisTimeout int32  `mapstructure:"sqs_visibility_timeout"` // seconds, default 120
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Type:          "memory",
		Capacity:      1024,
		RedisAddr:     "localhost:6379",
		Stream:        "mailjobs",
		Group:         "mailjobs-workers",
		BlockTimeout:  5 * time.Second,
		ClaimIdle:     2 * time.Minute,
		SQSWaitTime:   20,
		SQSVisTimeout: 120,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Capacity <= 0 {
		c.Capacity = d.Capacity
	}
	if c.Stream == "" {
		c.Stream = d.Stream
	}
	if c.Group == "" {
		c.Group = d.Group
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = d.BlockTimeout
	}
	if c.ClaimIdle <= 0 {
		c.ClaimIdle = d.ClaimIdle
	}
	if c.SQSWaitTime <= 0 {
		c.SQSWaitTime = d.SQSWaitTime
	}
	if c.SQSVisTimeout <= 0 {
		c.SQSVisTimeout = d.SQSVisTimeout
	}
	return c
}
