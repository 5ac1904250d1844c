// Package attachment reads files that jobs attach to outgoing mail.
package attachment

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a requested attachment does not exist.
var ErrNotFound = errors.New("attachment: file not found")

// Store gives read access to attachment files by path.
type Store interface {
	// Exists reports whether path names a readable file. It never opens it.
	Exists(ctx context.Context, path string) (bool, error)
	// Open returns the file contents. Callers must close the reader.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// Config holds configuration for creating a Store.
type Config struct {
	Type       string `mapstructure:"type"`     // "local" or "s3"
	BaseDir    string `mapstructure:"base_dir"` // local paths, absolute ones included, resolve inside it
	S3Bucket   string `mapstructure:"s3_bucket"`
	S3Prefix   string `mapstructure:"s3_prefix"`
	S3Endpoint string `mapstructure:"s3_endpoint"`
	S3Region   string `mapstructure:"s3_region"`
}

// New creates a Store based on the provided configuration.
// If Type is empty or unsupported, it defaults to local files and logs a warning.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (Store, error) {
	switch cfg.Type {
	case "local":
		return NewLocalStore(cfg.BaseDir), nil
	case "s3":
		return NewS3StoreFromConfig(ctx, cfg)
	default:
		logger.Warn().
			Str("type", cfg.Type).
			Msg("unsupported or empty attachment store type, defaulting to local")
		return NewLocalStore(cfg.BaseDir), nil
	}
}
