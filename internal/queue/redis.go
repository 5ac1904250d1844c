package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisQueue stores job ids in a Redis stream consumed through a consumer
// group, so each entry is delivered to one consumer until acknowledged.
// Entries left unacknowledged are delivered again: this consumer's own
// pending entries once on its first Dequeue, and entries idle for longer
// than the claim timeout on any consumer through XAUTOCLAIM.
type RedisQueue struct {
	client       *redis.Client
	stream       string
	group        string
	consumer     string
	blockTimeout time.Duration
	claimIdle    time.Duration
	log          zerolog.Logger

	mu            sync.Mutex
	backlog       []redis.XMessage
	backlogLoaded bool
	claimStart    string
	nextClaim     time.Time
}

// NewRedisQueue creates a RedisQueue and its consumer group. An existing
// group is reused.
func NewRedisQueue(ctx context.Context, client *redis.Client, cfg Config, log zerolog.Logger) (*RedisQueue, error) {
	cfg = cfg.withDefaults()
	consumer := cfg.Consumer
	if consumer == "" {
		consumer = defaultConsumerName()
	}

	q := &RedisQueue{
		client:       client,
		stream:       cfg.Stream,
		group:        cfg.Group,
		consumer:     consumer,
		blockTimeout: cfg.BlockTimeout,
		claimIdle:    cfg.ClaimIdle,
		claimStart:   "0-0",
		log:          log.With().Str("component", "redis_queue").Str("stream", cfg.Stream).Logger(),
	}
	if err := q.createConsumerGroup(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

// createConsumerGroup creates the consumer group for the stream.
// If the stream or group already exists, the error is ignored.
func (q *RedisQueue) createConsumerGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on stream %s: %w", q.group, q.stream, err)
	}
	return nil
}

// Enqueue appends the id to the stream using XADD.
func (q *RedisQueue) Enqueue(ctx context.Context, id string) error {
	data, err := NewMessage(id).encode()
	if err != nil {
		return err
	}

	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			"data": data,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd to stream %s: %w", q.stream, err)
	}

	MessagesEnqueuedTotal.WithLabelValues("redis").Inc()
	return nil
}

// Dequeue returns a stranded entry if one is due for redelivery, and
// otherwise reads one new entry for this consumer, polling with the
// configured block timeout until an entry arrives or ctx is done. Malformed
// entries are acknowledged and skipped.
func (q *RedisQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if d := q.redeliver(ctx); d != nil {
			return d, nil
		}

		xStreams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{q.stream, ">"},
			Count:    1,
			Block:    q.blockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("xreadgroup on stream %s: %w", q.stream, err)
		}

		for _, stream := range xStreams {
			for _, xMsg := range stream.Messages {
				if d := q.delivery(ctx, xMsg); d != nil {
					return d, nil
				}
			}
		}
	}
}

// redeliver hands out entries that were delivered before but never
// acknowledged. Lookup failures are logged and leave the caller to read new
// entries.
func (q *RedisQueue) redeliver(ctx context.Context) *Delivery {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.backlogLoaded {
		msgs, err := q.ownPending(ctx)
		if err != nil {
			if ctx.Err() == nil {
				q.log.Warn().Err(err).Msg("failed to read own pending entries")
			}
			return nil
		}
		q.backlog, q.backlogLoaded = msgs, true
		if len(msgs) > 0 {
			q.log.Info().Int("entries", len(msgs)).Str("consumer", q.consumer).Msg("redelivering own pending entries")
		}
	}

	if len(q.backlog) == 0 && !time.Now().Before(q.nextClaim) {
		q.nextClaim = time.Now().Add(q.claimIdle / 2)
		msgs, err := q.claimIdleEntries(ctx)
		if err != nil {
			if ctx.Err() == nil {
				q.log.Warn().Err(err).Msg("failed to claim idle entries")
			}
			return nil
		}
		for _, m := range msgs {
			q.log.Warn().Str("entry_id", m.ID).Dur("min_idle", q.claimIdle).Msg("claimed idle entry")
		}
		q.backlog = msgs
	}

	for len(q.backlog) > 0 {
		xMsg := q.backlog[0]
		q.backlog = q.backlog[1:]
		MessagesRedeliveredTotal.WithLabelValues("redis").Inc()
		if d := q.delivery(ctx, xMsg); d != nil {
			return d
		}
	}
	return nil
}

// ownPending reads the entries this consumer name was given but never
// acknowledged, such as those of a previous run of the same worker.
func (q *RedisQueue) ownPending(ctx context.Context) ([]redis.XMessage, error) {
	xStreams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, "0"},
		Block:    -1,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xreadgroup pending on stream %s: %w", q.stream, err)
	}

	var msgs []redis.XMessage
	for _, stream := range xStreams {
		msgs = append(msgs, stream.Messages...)
	}
	return msgs, nil
}

// claimIdleEntries moves entries idle for longer than claimIdle, on any
// consumer, to this one.
func (q *RedisQueue) claimIdleEntries(ctx context.Context) ([]redis.XMessage, error) {
	msgs, next, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: q.consumer,
		MinIdle:  q.claimIdle,
		Start:    q.claimStart,
		Count:    10,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xautoclaim on stream %s: %w", q.stream, err)
	}
	if next == "" {
		next = "0-0"
	}
	q.claimStart = next
	return msgs, nil
}

func (q *RedisQueue) delivery(ctx context.Context, xMsg redis.XMessage) *Delivery {
	data, ok := xMsg.Values["data"].(string)
	if !ok {
		q.log.Error().Str("entry_id", xMsg.ID).Msg("invalid message data type")
		q.dropMalformed(ctx, xMsg.ID)
		return nil
	}

	msg, err := decodeMessage(data)
	if err != nil {
		q.log.Error().Err(err).Str("entry_id", xMsg.ID).Msg("failed to decode message")
		q.dropMalformed(ctx, xMsg.ID)
		return nil
	}

	entryID := xMsg.ID
	return &Delivery{
		JobID: msg.JobID,
		Ref:   entryID,
		ack: func(ctx context.Context) error {
			return q.acknowledge(ctx, entryID)
		},
	}
}

func (q *RedisQueue) dropMalformed(ctx context.Context, entryID string) {
	MalformedMessagesTotal.WithLabelValues("redis").Inc()
	if err := q.acknowledge(ctx, entryID); err != nil {
		q.log.Error().Err(err).Str("entry_id", entryID).Msg("failed to acknowledge malformed message")
	}
}

// acknowledge acknowledges an entry in the consumer group using XACK.
func (q *RedisQueue) acknowledge(ctx context.Context, entryID string) error {
	if err := q.client.XAck(ctx, q.stream, q.group, entryID).Err(); err != nil {
		return fmt.Errorf("xack message %s on stream %s: %w", entryID, q.stream, err)
	}
	MessagesAckedTotal.WithLabelValues("redis").Inc()
	return nil
}

// Pending returns the number of delivered but unacknowledged entries.
func (q *RedisQueue) Pending(ctx context.Context) (int64, error) {
	p, err := q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		return 0, fmt.Errorf("xpending on stream %s: %w", q.stream, err)
	}
	return p.Count, nil
}

// Close closes the underlying client.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func defaultConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
