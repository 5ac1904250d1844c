package resultstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sungwon/mailjobs/internal/job"
)

// MemoryStore keeps job records in process memory until they are purged.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*job.Job
	now  func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*job.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a copy of j.
func (s *MemoryStore) Create(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[j.ID]; ok {
		return fmt.Errorf("create job %s: %w", j.ID, ErrExists)
	}
	s.jobs[j.ID] = j.Clone()
	return nil
}

// Get returns a copy of the stored job.
func (s *MemoryStore) Get(_ context.Context, id string) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j.Clone(), nil
}

// SetStatus performs the compare-and-set under the store lock.
func (s *MemoryStore) SetStatus(_ context.Context, id string, from, to job.Status, result json.RawMessage, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status != from || !job.CanTransition(from, to) {
		return fmt.Errorf("job %s is %s, want %s -> %s: %w", id, j.Status, from, to, ErrConflict)
	}
	return j.Apply(to, result, errMsg, s.now())
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }


// Purge drops terminal jobs that finished more than olderThan ago.
func (s *MemoryStore) Purge(_ context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-olderThan)
	var n int64
	for id, j := range s.jobs {
		if j.Status.Terminal() && j.FinishedAt != nil && j.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}
