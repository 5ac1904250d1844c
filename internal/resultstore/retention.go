package resultstore

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Purger is implemented by stores whose records do not expire on their own.
type Purger interface {
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)
}

// RunRetention purges terminal jobs older than ttl on every interval until
// ctx is done. Stores that are not Purgers, such as Redis with its key TTL,
// return immediately, as does a non-positive ttl.
func RunRetention(ctx context.Context, s Store, ttl, interval time.Duration, log zerolog.Logger) error {
	p, ok := s.(Purger)
	if !ok || ttl <= 0 {
		return nil
	}
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := p.Purge(ctx, ttl)
			if err != nil {
				log.Error().Err(err).Msg("purge expired jobs")
				continue
			}
			if n > 0 {
				log.Info().Int64("purged", n).Dur("ttl", ttl).Msg("purged expired jobs")
			}
		}
	}
}
