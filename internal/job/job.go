// Package job defines the email job record, its payload shapes, the outcome
// records handlers produce, and the status state machine shared by every
// queue and result store backend.
package job

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind selects the handler that executes a job.
type Kind string

const (
	KindSingle     Kind = "single"
	KindBulk       Kind = "bulk"
	KindTemplated  Kind = "templated"
	KindAttachment Kind = "attachment"
)

// Kinds lists every supported job kind.
var Kinds = []Kind{KindSingle, KindBulk, KindTemplated, KindAttachment}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSingle, KindBulk, KindTemplated, KindAttachment:
		return true
	}
	return false
}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("invalid job kind: %q", s)
	}
	return k, nil
}

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// CanTransition reports whether a job may move from one status to another.
// The only legal moves are pending -> running and running -> succeeded|failed.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusRunning
	case StatusRunning:
		return to.Terminal()
	}
	return false
}

// Job is one queued unit of work. ID, Kind and Payload never change after
// creation; Status, Result, Error and the timestamps are written only by the
// executor through a result store.
type Job struct {
	ID            string          `json:"id"`
	Kind          Kind            `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
	Status        Status          `json:"status"`
	Result        json.RawMessage `json:"result,omitempty"`
	Error         string          `json:"error,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
}

// New creates a pending job with a fresh UUID for the given kind and payload.
// The payload is marshalled once so the stored bytes stay immutable.
func New(kind Kind, payload any) (*Job, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid job kind: %q", kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Kind:      kind,
		Payload:   raw,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Clone returns a deep copy so callers cannot mutate a stored record.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.Payload = append(json.RawMessage(nil), j.Payload...)
	if j.Result != nil {
		c.Result = append(json.RawMessage(nil), j.Result...)
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// Apply moves the job into status to, stamping the matching timestamp and,
// for terminal states, the result and error detail. It fails if the move is
// not a legal transition from the job's current status.
func (j *Job) Apply(to Status, result json.RawMessage, errMsg string, now time.Time) error {
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("illegal transition %s -> %s", j.Status, to)
	}
	j.Status = to
	switch {
	case to == StatusRunning:
		j.StartedAt = &now
	case to.Terminal():
		j.FinishedAt = &now
		j.Result = append(json.RawMessage(nil), result...)
		j.Error = errMsg
	}
	return nil
}
