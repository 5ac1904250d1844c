package resultstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/mailjobs/internal/job"
)

// finishedAt creates a job in s and moves it to succeeded at time at.
func finishedAt(t *testing.T, s *MemoryStore, at time.Time) *job.Job {
	t.Helper()
	ctx := context.Background()
	s.now = func() time.Time { return at }

	j := newTestJob(t)
	if err := s.Create(ctx, j); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	_ = s.SetStatus(ctx, j.ID, job.StatusPending, job.StatusRunning, nil, "")
	if err := s.SetStatus(ctx, j.ID, job.StatusRunning, job.StatusSucceeded, json.RawMessage(`{}`), ""); err != nil {
		t.Fatalf("finish error: %v", err)
	}
	return j
}

func TestMemoryStore_Purge(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	old := finishedAt(t, s, now.Add(-3*time.Hour))
	recent := finishedAt(t, s, now.Add(-10*time.Minute))

	running := newTestJob(t)
	_ = s.Create(ctx, running)
	_ = s.SetStatus(ctx, running.ID, job.StatusPending, job.StatusRunning, nil, "")

	s.now = func() time.Time { return now }
	n, err := s.Purge(ctx, time.Hour)
	if err != nil {
		t.Fatalf("Purge() error: %v", err)
	}
	if n != 1 {
		t.Errorf("Purge() removed %d, want 1", n)
	}
	if _, err := s.Get(ctx, old.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("old job still present: %v", err)
	}
	for _, id := range []string{recent.ID, running.ID} {
		if _, err := s.Get(ctx, id); err != nil {
			t.Errorf("Get(%s) error: %v", id, err)
		}
	}
}

func TestRunRetention(t *testing.T) {
	t.Run("purges on interval", func(t *testing.T) {
		s := NewMemoryStore()
		now := time.Now().UTC()
		old := finishedAt(t, s, now.Add(-2*time.Hour))
		s.now = func() time.Time { return now }

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- RunRetention(ctx, s, time.Hour, 5*time.Millisecond, zerolog.Nop()) }()

		deadline := time.Now().Add(2 * time.Second)
		for storedJobs(s) != 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		cancel()
		if err := <-done; err != nil {
			t.Fatalf("RunRetention() error: %v", err)
		}
		if storedJobs(s) != 0 {
			t.Errorf("job %s was not purged", old.ID)
		}
	})

	t.Run("store without purge returns", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		err := RunRetention(context.Background(), NewRedisStore(client, time.Hour), time.Hour, time.Millisecond, zerolog.Nop())
		if err != nil {
			t.Errorf("RunRetention() error: %v", err)
		}
	})

	t.Run("zero ttl returns", func(t *testing.T) {
		if err := RunRetention(context.Background(), NewMemoryStore(), 0, time.Millisecond, zerolog.Nop()); err != nil {
			t.Errorf("RunRetention() error: %v", err)
		}
	})
}
