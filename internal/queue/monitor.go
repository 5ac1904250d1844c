package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// backendName returns the depth gauge label for backends that can report
// a backlog, or "" for those that cannot.
func backendName(q Queue) string {
	switch q.(type) {
	case *MemoryQueue:
		return "memory"
	case *RedisQueue:
		return "redis"
	}
	return ""
}

func depth(ctx context.Context, q Queue) (int64, error) {
	switch q := q.(type) {
	case *MemoryQueue:
		return int64(q.Len()), nil
	case *RedisQueue:
		return q.Pending(ctx)
	}
	return 0, nil
}

// RunDepthMonitor publishes the queue depth gauge on every interval until
// ctx is done. SQS reports its own depth to CloudWatch, so it returns at once.
func RunDepthMonitor(ctx context.Context, q Queue, interval time.Duration, log zerolog.Logger) error {
	backend := backendName(q)
	if backend == "" {
		return nil
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := depth(ctx, q)
		switch {
		case err == nil:
			QueueDepth.WithLabelValues(backend).Set(float64(n))
		case ctx.Err() == nil:
			log.Warn().Err(err).Msg("sample queue depth")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
