package resultstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sungwon/mailjobs/internal/job"
)

// createScript writes every field of a new job hash unless the key exists.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// setStatusScript is the compare-and-set on the status field.
// ARGV: from, to, timestamp field, timestamp, terminal flag, result, error, ttl ms.
// Returns -1 if the job is unknown, 0 on status mismatch, 1 on success.
var setStatusScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'status')
if not cur then
  return -1
end
if cur ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[2], ARGV[3], ARGV[4])
if ARGV[5] == '1' then
  redis.call('HSET', KEYS[1], 'result', ARGV[6], 'error', ARGV[7])
  local ttl = tonumber(ARGV[8])
  if ttl > 0 then
    redis.call('PEXPIRE', KEYS[1], ttl)
  end
end
return 1
`)

// RedisStore keeps each job in a hash at job:<id>. Terminal records expire
// after the configured result TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore creates a RedisStore. A zero ttl keeps results forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func jobKey(id string) string {
	return "job:" + id
}

// Create writes the job hash if the id is unused.
func (s *RedisStore) Create(ctx context.Context, j *job.Job) error {
	args := []any{
		"kind", string(j.Kind),
		"payload", string(j.Payload),
		"status", string(j.Status),
		"correlation_id", j.CorrelationID,
		"created_at", j.CreatedAt.Format(time.RFC3339Nano),
	}
	ok, err := createScript.Run(ctx, s.client, []string{jobKey(j.ID)}, args...).Int()
	if err != nil {
		return fmt.Errorf("create job %s: %w", j.ID, err)
	}
	if ok == 0 {
		return fmt.Errorf("create job %s: %w", j.ID, ErrExists)
	}
	return nil
}

// Get reads the job hash.
func (s *RedisStore) Get(ctx context.Context, id string) (*job.Job, error) {
	fields, err := s.client.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	j := &job.Job{
		ID:            id,
		Kind:          job.Kind(fields["kind"]),
		Payload:       json.RawMessage(fields["payload"]),
		Status:        job.Status(fields["status"]),
		Error:         fields["error"],
		CorrelationID: fields["correlation_id"],
	}
	if r := fields["result"]; r != "" {
		j.Result = json.RawMessage(r)
	}
	if j.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		return nil, fmt.Errorf("parse created_at of job %s: %w", id, err)
	}
	j.StartedAt = parseOptionalTime(fields["started_at"])
	j.FinishedAt = parseOptionalTime(fields["finished_at"])
	return j, nil
}

// SetStatus runs the compare-and-set script.
func (s *RedisStore) SetStatus(ctx context.Context, id string, from, to job.Status, result json.RawMessage, errMsg string) error {
	if !job.CanTransition(from, to) {
		return fmt.Errorf("job %s: illegal transition %s -> %s: %w", id, from, to, ErrConflict)
	}

	tsField, terminal := "started_at", "0"
	if to.Terminal() {
		tsField, terminal = "finished_at", "1"
	}
	args := []any{
		string(from), string(to),
		tsField, s.now().Format(time.RFC3339Nano),
		terminal, string(result), errMsg,
		s.ttl.Milliseconds(),
	}

	res, err := setStatusScript.Run(ctx, s.client, []string{jobKey(id)}, args...).Int()
	if err != nil {
		return fmt.Errorf("set status of job %s: %w", id, err)
	}
	switch res {
	case -1:
		return ErrNotFound
	case 0:
		return fmt.Errorf("job %s is not %s: %w", id, from, ErrConflict)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func parseOptionalTime(v string) *time.Time {
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return nil
	}
	return &t
}
