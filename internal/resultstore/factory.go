package resultstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config selects and configures the result store backend.
type Config struct {
	// Type is "memory" (default), "redis" or "postgres".
	Type          string        `mapstructure:"type"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	ResultTTL     time.Duration `mapstructure:"result_ttl"`

	DatabaseURL    string        `mapstructure:"database_url"`
	PoolMin        int32         `mapstructure:"pool_min"`
	PoolMax        int32         `mapstructure:"pool_max"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// New creates the store selected by cfg.Type. The Postgres backend applies
// its migrations before returning.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryStore(), nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedisStore(client, cfg.ResultTTL), nil

	case "postgres":
		timeout := cfg.ConnectTimeout
		if timeout == 0 {
			timeout = 5 * time.Second
		}
		pool, err := NewPool(ctx, cfg.DatabaseURL, cfg.PoolMin, cfg.PoolMax, timeout)
		if err != nil {
			return nil, err
		}
		s := NewPostgresStore(pool)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
