// Package executor runs queued jobs. Each worker claims a job through the
// result store, runs its handler, and writes exactly one terminal status.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/mailjobs/internal/handler"
	"github.com/sungwon/mailjobs/internal/job"
	"github.com/sungwon/mailjobs/internal/logger"
	"github.com/sungwon/mailjobs/internal/metrics"
	"github.com/sungwon/mailjobs/internal/queue"
	"github.com/sungwon/mailjobs/internal/resultstore"
)

// Handlers resolves the handler for a job kind.
type Handlers interface {
	Lookup(kind job.Kind) (handler.Func, error)
}

// Pool manages the worker goroutines that consume job ids from a queue.
type Pool struct {
	queue    queue.Queue
	store    resultstore.Store
	handlers Handlers
	retry    *RetryStrategy
	config   Config
	log      zerolog.Logger
	wg       sync.WaitGroup
	cancel   context.CancelFunc
	// idleBackoff is how long a worker waits after a failed Dequeue.
	idleBackoff time.Duration
}

// NewPool creates a Pool. Zero config fields take their defaults.
func NewPool(q queue.Queue, store resultstore.Store, handlers Handlers, cfg Config, log zerolog.Logger) *Pool {
	cfg = cfg.withDefaults()
	return &Pool{
		queue:       q,
		store:       store,
		handlers:    handlers,
		retry:       NewRetryStrategy(cfg.StoreRetries),
		config:      cfg,
		log:         log.With().Str("component", "executor").Logger(),
		idleBackoff: time.Second,
	}
}

// Start launches the configured number of worker goroutines.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	for i := range p.config.Count {
		p.wg.Add(1)
		go p.runWorker(ctx, fmt.Sprintf("worker-%d", i))
	}

	p.log.Info().Int("worker_count", p.config.Count).Msg("executor pool started")
}

// Stop signals all workers to stop and waits up to the shutdown timeout for
// in-flight jobs to finish.
func (p *Pool) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(p.config.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		p.log.Info().Msg("executor pool stopped gracefully")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		p.log.Warn().Msg("executor pool shutdown timed out")
		return fmt.Errorf("shutdown timed out after %s", p.config.ShutdownTimeout)
	}
}

// Run starts the pool and blocks until ctx is done, then stops it.
func (p *Pool) Run(ctx context.Context) error {
	p.Start(ctx)
	<-ctx.Done()
	return p.Stop(context.WithoutCancel(ctx))
}

// runWorker is the main loop for a single worker goroutine.
func (p *Pool) runWorker(ctx context.Context, name string) {
	defer p.wg.Done()

	log := p.log.With().Str("worker", name).Logger()
	log.Debug().Msg("worker started")

	for {
		d, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				log.Debug().Msg("worker stopping")
				return
			}
			log.Error().Err(err).Msg("dequeue failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.idleBackoff):
			}
			continue
		}

		// In-flight jobs run to completion during shutdown, bounded by the
		// process timeout.
		procCtx := context.WithoutCancel(ctx)
		if p.process(procCtx, log, d.JobID) {
			if ackErr := d.Ack(procCtx); ackErr != nil {
				log.Error().Err(ackErr).Str("job_id", d.JobID).Str("ref", d.Ref).Msg("failed to acknowledge delivery")
			}
		}
	}
}

// process executes one job id and reports whether its delivery may be
// acknowledged. Deliveries are left unacknowledged only when the store could
// not be read, so backends with redelivery try again later.
func (p *Pool) process(ctx context.Context, log zerolog.Logger, id string) bool {
	j, err := p.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, resultstore.ErrNotFound) {
			log.Warn().Str("job_id", id).Msg("orphaned job id")
			return true
		}
		metrics.StoreErrorsTotal.WithLabelValues("get").Inc()
		log.Error().Err(err).Str("job_id", id).Msg("failed to load job")
		return false
	}

	if err := p.store.SetStatus(ctx, id, job.StatusPending, job.StatusRunning, nil, ""); err != nil {
		switch {
		case errors.Is(err, resultstore.ErrConflict):
			log.Debug().Str("job_id", id).Str("status", string(j.Status)).Msg("job already claimed")
			return true
		case errors.Is(err, resultstore.ErrNotFound):
			log.Warn().Str("job_id", id).Msg("orphaned job id")
			return true
		}
		metrics.StoreErrorsTotal.WithLabelValues("set_status").Inc()
		log.Error().Err(err).Str("job_id", id).Msg("failed to claim job")
		return false
	}

	jobLog := log.With().Str("job_id", id).Str("kind", string(j.Kind)).Logger()
	ctx = logger.WithLogger(ctx, jobLog)
	if j.CorrelationID != "" {
		ctx = logger.WithCorrelationID(ctx, j.CorrelationID)
		jobLog = logger.FromContext(ctx)
	}

	metrics.JobsInFlight.Inc()
	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, p.config.ProcessTimeout)
	status, result, errMsg := p.execute(runCtx, j)
	cancel()
	metrics.JobsInFlight.Dec()
	metrics.JobProcessingDuration.WithLabelValues(string(j.Kind)).Observe(time.Since(start).Seconds())

	// The terminal write gets its own deadline so a handler that used up the
	// process timeout still leaves the job terminal.
	writeCtx, cancel := context.WithTimeout(ctx, p.config.ProcessTimeout)
	defer cancel()
	if err := p.finish(writeCtx, jobLog, id, status, result, errMsg); err != nil {
		jobLog.Error().Err(err).Str("status", string(status)).Msg("failed to record job result")
		return true
	}
	metrics.JobsProcessedTotal.WithLabelValues(string(j.Kind), string(status)).Inc()

	ev := jobLog.Info()
	if status == job.StatusFailed {
		ev = jobLog.Warn().Str("error", errMsg)
	}
	ev.Str("status", string(status)).Dur("duration", time.Since(start)).Msg("job finished")
	return true
}

// execute runs the job's handler and converts its return into the terminal
// status, the stored result and the error detail.
func (p *Pool) execute(ctx context.Context, j *job.Job) (job.Status, json.RawMessage, string) {
	value, err := p.runHandler(ctx, j)
	if err == nil {
		raw, mErr := json.Marshal(value)
		if mErr == nil {
			return job.StatusSucceeded, raw, ""
		}
		err = fmt.Errorf("encode result: %w", mErr)
	}

	outcome := job.Outcome{
		Status:  job.OutcomeError,
		Message: fmt.Sprintf("Error executing %s job: %v", j.Kind, err),
		Details: job.Describe(j.Kind, j.Payload),
	}
	raw, _ := json.Marshal(outcome)
	return job.StatusFailed, raw, err.Error()
}

// runHandler looks up and calls the handler, converting a panic into an error.
func (p *Pool) runHandler(ctx context.Context, j *job.Job) (value any, err error) {
	fn, err := p.handlers.Lookup(j.Kind)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			log := logger.FromContext(ctx)
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")
			value, err = nil, fmt.Errorf("handler panic: %v", r)
		}
	}()

	return fn(ctx, j)
}

// finish writes the terminal status, retrying transient store errors until
// the retry budget or ctx runs out. A conflict means another writer already
// finished the job and is never retried.
func (p *Pool) finish(ctx context.Context, log zerolog.Logger, id string, status job.Status, result json.RawMessage, errMsg string) error {
	for attempt := 0; ; attempt++ {
		err := p.store.SetStatus(ctx, id, job.StatusRunning, status, result, errMsg)
		if err == nil {
			return nil
		}
		if errors.Is(err, resultstore.ErrConflict) || errors.Is(err, resultstore.ErrNotFound) {
			return err
		}

		metrics.StoreErrorsTotal.WithLabelValues("set_status").Inc()
		if !p.retry.ShouldRetry(attempt) {
			return fmt.Errorf("after %d retries: %w", attempt, err)
		}

		backoff := p.retry.NextBackoff(attempt)
		log.Warn().Err(err).Int("attempt", attempt+1).Dur("backoff", backoff).Msg("retrying terminal write")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("terminal write: %w", errors.Join(err, ctx.Err()))
		case <-timer.C:
		}
	}
}
