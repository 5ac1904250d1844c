package queue

import (
	"context"
	"fmt"
	"sync"
)

// MemoryQueue is a buffered channel of job ids for single-process
// deployments. Enqueued ids are lost if the process exits.
type MemoryQueue struct {
	ch   chan string
	done chan struct{}
	once sync.Once
}

// NewMemoryQueue creates a MemoryQueue holding up to capacity ids.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = DefaultConfig().Capacity
	}
	return &MemoryQueue{
		ch:   make(chan string, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue buffers id, returning ErrFull at once when the buffer is full.
func (q *MemoryQueue) Enqueue(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	select {
	case q.ch <- id:
		MessagesEnqueuedTotal.WithLabelValues("memory").Inc()
		return nil
	default:
		return fmt.Errorf("%w: %d ids buffered", ErrFull, cap(q.ch))
	}
}

// Dequeue receives the next id. Receiving from the channel already makes the
// delivery exclusive, so Ack only records the metric.
func (q *MemoryQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.done:
		return nil, ErrClosed
	case id := <-q.ch:
		return &Delivery{
			JobID: id,
			Ref:   id,
			ack: func(context.Context) error {
				MessagesAckedTotal.WithLabelValues("memory").Inc()
				return nil
			},
		}, nil
	}
}

// Len returns the number of ids waiting in the buffer.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

// Close wakes every blocked caller. Ids still buffered are dropped.
func (q *MemoryQueue) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}
