// Package resultstore persists job records keyed by job id and enforces the
// status state machine on every write.
package resultstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sungwon/mailjobs/internal/job"
)

var (
	// ErrNotFound is returned when no job exists for an id.
	ErrNotFound = errors.New("resultstore: job not found")
	// ErrConflict is returned when a status write does not start from the
	// expected status, either because another worker moved the job first or
	// because the transition is illegal.
	ErrConflict = errors.New("resultstore: status conflict")
	// ErrExists is returned by Create when the id is already in use.
	ErrExists = errors.New("resultstore: job already exists")
)

// Store is the id -> job record mapping shared by the dispatcher, executors
// and status queries. Implementations must be safe for concurrent use across
// goroutines and processes.
type Store interface {
	// Create persists a new pending job. Ids are never reused.
	Create(ctx context.Context, j *job.Job) error
	// Get returns a copy of the job or ErrNotFound.
	Get(ctx context.Context, id string) (*job.Job, error)
	// SetStatus atomically moves a job from status from to status to. It
	// returns ErrConflict if the stored status is not from or the move is not
	// a legal transition. result and errMsg are recorded on terminal writes.
	SetStatus(ctx context.Context, id string, from, to job.Status, result json.RawMessage, errMsg string) error
	// Ping checks connectivity with the backend.
	Ping(ctx context.Context) error
	Close() error
}
