// Package handler turns job payloads into delivery outcomes. Every handler
// catches its own delivery failures and reports them as job.Outcome values.
package handler

import (
	"context"
	"fmt"
	"sync"

	"github.com/sungwon/mailjobs/internal/job"
)

// Func executes one job and returns the value stored as its result. An error
// means the handler itself could not run, not that delivery failed.
type Func func(ctx context.Context, j *job.Job) (any, error)

// Registry maps each job kind to its handler.
type Registry struct {
	mu       sync.RWMutex
	handlers map[job.Kind]Func
}

// NewRegistry returns a registry with the single, bulk, templated and
// attachment handlers of d registered.
func NewRegistry(d *Deliverer) *Registry {
	r := &Registry{handlers: make(map[job.Kind]Func, len(job.Kinds))}
	r.Register(job.KindSingle, d.Single)
	r.Register(job.KindBulk, d.Bulk)
	r.Register(job.KindTemplated, d.Templated)
	r.Register(job.KindAttachment, d.Attachment)
	return r
}

// Register sets the handler for kind, replacing any previous one.
func (r *Registry) Register(kind job.Kind, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = fn
}

// Lookup returns the handler for kind.
func (r *Registry) Lookup(kind job.Kind) (Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("no handler registered for job kind %q", kind)
	}
	return fn, nil
}
