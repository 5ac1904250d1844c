package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryQueue_FIFO(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(ctx, id); err != nil {
			t.Fatalf("Enqueue(%s) error: %v", id, err)
		}
	}
	if q.Len() != 3 {
		t.Errorf("Len() = %d, want 3", q.Len())
	}

	for _, want := range []string{"a", "b", "c"} {
		d, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue() error: %v", err)
		}
		if d.JobID != want {
			t.Errorf("Dequeue() = %s, want %s", d.JobID, want)
		}
		if err := d.Ack(ctx); err != nil {
			t.Errorf("Ack() error: %v", err)
		}
	}
}

func TestMemoryQueue_ExclusiveDelivery(t *testing.T) {
	q := NewMemoryQueue(100)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := range 100 {
		if err := q.Enqueue(ctx, fmt.Sprintf("job-%d", i)); err != nil {
			t.Fatalf("Enqueue() error: %v", err)
		}
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if q.Len() == 0 {
					return
				}
				dctx, dcancel := context.WithTimeout(ctx, 20*time.Millisecond)
				d, err := q.Dequeue(dctx)
				dcancel()
				if err != nil {
					return
				}
				mu.Lock()
				seen[d.JobID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 100 {
		t.Errorf("received %d distinct ids, want 100", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("id %s delivered %d times", id, n)
		}
	}
}

func TestMemoryQueue_DequeueBlocksUntilCancel(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Dequeue(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Dequeue() on empty queue error = %v, want DeadlineExceeded", err)
	}
}

func TestMemoryQueue_EnqueueFullFailsFast(t *testing.T) {
	q := NewMemoryQueue(1)
	if err := q.Enqueue(context.Background(), "a"); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	err := q.Enqueue(ctx, "b")
	if !errors.Is(err, ErrFull) {
		t.Fatalf("Enqueue() on full queue error = %v, want ErrFull", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Enqueue() on full queue took %s, want an immediate return", elapsed)
	}

	if _, err := q.Dequeue(ctx); err != nil {
		t.Fatalf("Dequeue() error: %v", err)
	}
	if err := q.Enqueue(ctx, "b"); err != nil {
		t.Errorf("Enqueue() after draining error: %v", err)
	}
}

func TestMemoryQueue_Close(t *testing.T) {
	q := NewMemoryQueue(1)

	done := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Dequeue() after Close error = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue() did not return after Close")
	}

	if err := q.Enqueue(context.Background(), "x"); !errors.Is(err, ErrClosed) {
		t.Errorf("Enqueue() after Close error = %v, want ErrClosed", err)
	}
}
