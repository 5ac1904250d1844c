// Package queue hands job ids from the dispatcher to executor workers.
// Every backend delivers each enqueued id to exactly one Dequeue caller at a
// time; the delivery is removed once acknowledged.
package queue

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned by Dequeue and Enqueue after Close.
	ErrClosed = errors.New("queue: closed")
	// ErrFull is returned by Enqueue when a bounded queue has no room left.
	ErrFull = errors.New("queue: full")
)

// Queue is the job id hand-off shared by dispatchers and executors.
type Queue interface {
	// Enqueue durably records id for later delivery. It never waits for
	// consumers to make room.
	Enqueue(ctx context.Context, id string) error
	// Dequeue blocks until an id is available or ctx is done.
	Dequeue(ctx context.Context) (*Delivery, error)
	Close() error
}

// Delivery is one id handed to one worker.
type Delivery struct {
	// JobID is the id of the job to execute.
	JobID string
	// Ref is the backend's own handle for the delivery, such as a stream
	// entry id or an SQS message id.
	Ref string

	ack func(ctx context.Context) error
}

// Ack removes the delivery from the queue so it is never redelivered.
func (d *Delivery) Ack(ctx context.Context) error {
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}
