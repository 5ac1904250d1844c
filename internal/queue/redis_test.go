package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func newTestRedisQueue(t *testing.T, client *redis.Client, consumer string) *RedisQueue {
	t.Helper()
	return newClaimingRedisQueue(t, client, consumer, 0)
}

func newClaimingRedisQueue(t *testing.T, client *redis.Client, consumer string, claimIdle time.Duration) *RedisQueue {
	t.Helper()
	q, err := NewRedisQueue(context.Background(), client, Config{
		Stream:       "test-jobs",
		Group:        "test-workers",
		Consumer:     consumer,
		BlockTimeout: 50 * time.Millisecond,
		ClaimIdle:    claimIdle,
	}, testLogger())
	if err != nil {
		t.Fatalf("NewRedisQueue() error: %v", err)
	}
	return q
}

func TestRedisQueue_EnqueueDequeueAck(t *testing.T) {
	client, _ := setupTestRedis(t)
	q := newTestRedisQueue(t, client, "c1")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := q.Enqueue(ctx, "job-1"); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	d, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue() error: %v", err)
	}
	if d.JobID != "job-1" {
		t.Errorf("JobID = %q, want job-1", d.JobID)
	}
	if d.Ref == "" {
		t.Error("Ref should carry the stream entry id")
	}

	pending, err := q.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending() error: %v", err)
	}
	if pending != 1 {
		t.Errorf("Pending() before Ack = %d, want 1", pending)
	}

	if err := d.Ack(ctx); err != nil {
		t.Fatalf("Ack() error: %v", err)
	}
	pending, _ = q.Pending(ctx)
	if pending != 0 {
		t.Errorf("Pending() after Ack = %d, want 0", pending)
	}
}

func TestRedisQueue_GroupReuse(t *testing.T) {
	client, _ := setupTestRedis(t)
	first := newTestRedisQueue(t, client, "c1")
	second := newTestRedisQueue(t, client, "c2")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := first.Enqueue(ctx, "job-a"); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if err := first.Enqueue(ctx, "job-b"); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	d1, err := first.Dequeue(ctx)
	if err != nil {
		t.Fatalf("first Dequeue() error: %v", err)
	}
	d2, err := second.Dequeue(ctx)
	if err != nil {
		t.Fatalf("second Dequeue() error: %v", err)
	}
	if d1.JobID == d2.JobID {
		t.Errorf("both consumers received %s", d1.JobID)
	}
}

func TestRedisQueue_SkipsMalformed(t *testing.T) {
	client, _ := setupTestRedis(t)
	q := newTestRedisQueue(t, client, "c1")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: "test-jobs",
		Values: map[string]interface{}{"data": "{not json"},
	}).Err(); err != nil {
		t.Fatalf("xadd error: %v", err)
	}
	if err := q.Enqueue(ctx, "job-good"); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	d, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue() error: %v", err)
	}
	if d.JobID != "job-good" {
		t.Errorf("JobID = %q, want job-good", d.JobID)
	}

	pending, _ := q.Pending(ctx)
	if pending != 1 {
		t.Errorf("Pending() = %d, want 1 (malformed entry acknowledged)", pending)
	}
}

func TestRedisQueue_DequeueTimesOutWithContext(t *testing.T) {
	client, _ := setupTestRedis(t)
	q := newTestRedisQueue(t, client, "c1")

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Dequeue() on empty stream error = %v, want DeadlineExceeded", err)
	}
}

func TestRedisQueue_RedeliversOwnPendingAfterRestart(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	first := newTestRedisQueue(t, client, "c1")
	if err := first.Enqueue(ctx, "job-1"); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	lost, err := first.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue() error: %v", err)
	}

	restarted := newTestRedisQueue(t, client, "c1")
	d, err := restarted.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue() after restart error: %v", err)
	}
	if d.JobID != "job-1" || d.Ref != lost.Ref {
		t.Errorf("redelivered %s (%s), want job-1 (%s)", d.JobID, d.Ref, lost.Ref)
	}

	if err := d.Ack(ctx); err != nil {
		t.Fatalf("Ack() error: %v", err)
	}
	if pending, _ := restarted.Pending(ctx); pending != 0 {
		t.Errorf("Pending() after Ack = %d, want 0", pending)
	}
}

func TestRedisQueue_ClaimsIdleEntries(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stuck := newClaimingRedisQueue(t, client, "c1", 20*time.Millisecond)
	rescuer := newClaimingRedisQueue(t, client, "c2", 20*time.Millisecond)

	if err := stuck.Enqueue(ctx, "job-1"); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if _, err := stuck.Dequeue(ctx); err != nil {
		t.Fatalf("Dequeue() error: %v", err)
	}

	d, err := rescuer.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue() on second consumer error: %v", err)
	}
	if d.JobID != "job-1" {
		t.Errorf("claimed %s, want job-1", d.JobID)
	}

	if err := d.Ack(ctx); err != nil {
		t.Fatalf("Ack() error: %v", err)
	}
	if pending, _ := rescuer.Pending(ctx); pending != 0 {
		t.Errorf("Pending() after Ack = %d, want 0", pending)
	}
}

func TestRedisQueue_FreshEntriesNotClaimed(t *testing.T) {
	client, _ := setupTestRedis(t)

	owner := newTestRedisQueue(t, client, "c1")
	other := newTestRedisQueue(t, client, "c2")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := owner.Enqueue(ctx, "job-1"); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if _, err := owner.Dequeue(ctx); err != nil {
		t.Fatalf("Dequeue() error: %v", err)
	}

	short, cancelShort := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancelShort()
	if d, err := other.Dequeue(short); err == nil {
		t.Errorf("second consumer received %s while it was still in progress", d.JobID)
	}
}
