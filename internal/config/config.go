// Package config loads the service configuration from config.yaml and
// MAILJOBS_ environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sungwon/mailjobs/internal/attachment"
	"github.com/sungwon/mailjobs/internal/executor"
	"github.com/sungwon/mailjobs/internal/logger"
	"github.com/sungwon/mailjobs/internal/queue"
	"github.com/sungwon/mailjobs/internal/resultstore"
	"github.com/sungwon/mailjobs/internal/transport"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MAILJOBS"

// Config holds all application configuration.
type Config struct {
	API         APIConfig          `mapstructure:"api"`
	Queue       queue.Config       `mapstructure:"queue"`
	Store       resultstore.Config `mapstructure:"store"`
	Worker      executor.Config    `mapstructure:"worker"`
	Transport   transport.Config   `mapstructure:"transport"`
	Templates   TemplatesConfig    `mapstructure:"templates"`
	Attachments attachment.Config  `mapstructure:"attachments"`
	Logging     logger.Config      `mapstructure:"logging"`
	Metrics     MetricsConfig      `mapstructure:"metrics"`
}

// APIConfig holds REST API server configuration.
type APIConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the listen address.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TemplatesConfig locates the message templates.
type TemplatesConfig struct {
	Dir string `mapstructure:"dir"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// defaults are applied before the file and the environment, so every key is
// known to viper and can be overridden from the environment alone.
var defaults = map[string]any{
	"api.host":          "0.0.0.0",
	"api.port":          8080,
	"api.read_timeout":  10 * time.Second,
	"api.write_timeout": 10 * time.Second,

	"queue.type":                   "memory",
	"queue.capacity":               1024,
	"queue.redis_addr":             "localhost:6379",
	"queue.redis_password":         "",
	"queue.redis_db":               0,
	"queue.stream":                 "mailjobs",
	"queue.group":                  "mailjobs-workers",
	"queue.consumer":               "",
	"queue.block_timeout":          5 * time.Second,
	"queue.claim_idle":             2 * time.Minute,
	"queue.sqs_queue_url":          "",
	"queue.sqs_region":             "",
	"queue.sqs_wait_time":          20,
	"queue.sqs_visibility_timeout": 120,

	"store.type":            "memory",
	"store.redis_addr":      "localhost:6379",
	"store.redis_password":  "",
	"store.redis_db":        0,
	"store.result_ttl":      24 * time.Hour,
	"store.database_url":    "",
	"store.pool_min":        2,
	"store.pool_max":        10,
	"store.connect_timeout": 5 * time.Second,

	"worker.count":            4,
	"worker.process_timeout":  60 * time.Second,
	"worker.shutdown_timeout": 30 * time.Second,
	"worker.embedded":         true,
	"worker.store_retries":    5,

	"transport.type":            "stdout",
	"transport.from":            "noreply@example.com",
	"transport.smtp_host":       "",
	"transport.smtp_port":       587,
	"transport.smtp_username":   "",
	"transport.smtp_password":   "",
	"transport.smtp_tls":        "starttls",
	"transport.smtp_insecure":   false,
	"transport.smtp_timeout":    30 * time.Second,
	"transport.ses_region":      "",
	"transport.output_dir":      "./mail_output",
	"transport.health_interval": 30 * time.Second,

	"templates.dir": "./templates",

	"attachments.type":        "local",
	"attachments.base_dir":    "",
	"attachments.s3_bucket":   "",
	"attachments.s3_prefix":   "",
	"attachments.s3_endpoint": "",
	"attachments.s3_region":   "",

	"logging.level":        "info",
	"logging.output":       "stdout",
	"logging.file_path":    logger.DefaultLogFile,
	"logging.max_size_mb":  logger.DefaultMaxSizeMB,
	"logging.max_files":    logger.DefaultMaxFiles,
	"logging.max_age_days": logger.DefaultMaxAgeDays,

	"metrics.enabled": true,
}

// Load reads configuration from the given config directory path.
// It looks for a file named "config.yaml" in that directory.
// Environment variables with prefix MAILJOBS_ override file values.
// For example, MAILJOBS_STORE_DATABASE_URL overrides store.database_url.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations the binaries cannot run with.
func (c *Config) Validate() error {
	switch c.Queue.Type {
	case "memory", "redis", "sqs":
	default:
		return fmt.Errorf("invalid queue.type %q", c.Queue.Type)
	}
	switch c.Store.Type {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("invalid store.type %q", c.Store.Type)
	}
	switch c.Transport.Type {
	case "stdout", "file", "smtp", "ses":
	default:
		return fmt.Errorf("invalid transport.type %q", c.Transport.Type)
	}
	if c.Queue.Type == "sqs" && c.Queue.SQSQueueURL == "" {
		return fmt.Errorf("queue.sqs_queue_url is required for the sqs queue")
	}
	if c.Store.Type == "postgres" && c.Store.DatabaseURL == "" {
		return fmt.Errorf("store.database_url is required for the postgres store")
	}
	if c.Transport.Type == "smtp" && c.Transport.SMTPHost == "" {
		return fmt.Errorf("transport.smtp_host is required for the smtp transport")
	}
	if c.Queue.Type == "redis" && c.Queue.ClaimIdle <= c.Worker.ProcessTimeout {
		return fmt.Errorf("queue.claim_idle (%s) must exceed worker.process_timeout (%s)",
			c.Queue.ClaimIdle, c.Worker.ProcessTimeout)
	}
	if c.Worker.Count < 1 {
		return fmt.Errorf("worker.count must be at least 1, got %d", c.Worker.Count)
	}
	return nil
}

// SharedBackends reports whether jobs submitted by one process can be run by
// another. The memory queue and store only work with embedded workers.
func (c *Config) SharedBackends() bool {
	return c.Queue.Type != "memory" && c.Store.Type != "memory"
}
