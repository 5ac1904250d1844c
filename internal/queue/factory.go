package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// New creates the Queue selected by cfg.Type.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (Queue, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryQueue(cfg.Capacity), nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		q, err := NewRedisQueue(ctx, client, cfg, log)
		if err != nil {
			client.Close()
			return nil, err
		}
		return q, nil

	case "sqs":
		if cfg.SQSQueueURL == "" {
			return nil, fmt.Errorf("sqs queue requires sqs_queue_url")
		}
		sqsClient, err := newAWSSQSClient(ctx, cfg.SQSRegion)
		if err != nil {
			return nil, fmt.Errorf("create sqs client: %w", err)
		}
		return NewSQSQueue(sqsClient, cfg, log), nil

	default:
		return nil, fmt.Errorf("unknown queue type: %s", cfg.Type)
	}
}
