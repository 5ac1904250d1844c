package transport

import (
	"context"
	"fmt"
	"time"
)

// Config selects and configures the mail transport.
type Config struct {
	// Type is "stdout" (default), "file", "smtp" or "ses".
	Type string `mapstructure:"type"`
	// From is the default sender address.
	From string `mapstructure:"from"`

	SMTPHost     string        `mapstructure:"smtp_host"`
	SMTPPort     int           `mapstructure:"smtp_port"`
	SMTPUsername string        `mapstructure:"smtp_username"`
	SMTPPassword string        `mapstructure:"smtp_password"`
	SMTPTLS      string        `mapstructure:"smtp_tls"`
	SMTPInsecure bool          `mapstructure:"smtp_insecure"`
	SMTPTimeout  time.Duration `mapstructure:"smtp_timeout"`

	SESRegion string `mapstructure:"ses_region"`
	OutputDir string `mapstructure:"output_dir"`

	// HealthInterval is how often the health checker probes the transport.
	HealthInterval time.Duration `mapstructure:"health_interval"`
}

// New creates the transport selected by cfg.Type, wrapped with metrics.
func New(ctx context.Context, cfg Config) (Transport, error) {
	var (
		t   Transport
		err error
	)
	switch cfg.Type {
	case "stdout", "":
		t = NewStdout()
	case "file":
		t = NewFile(cfg.OutputDir)
	case "smtp":
		t, err = NewSMTP(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			TLSMode:  cfg.SMTPTLS,
			Insecure: cfg.SMTPInsecure,
			Timeout:  cfg.SMTPTimeout,
		})
	case "ses":
		t, err = NewSES(ctx, cfg.SESRegion)
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(t), nil
}
