// Package dispatch accepts email jobs from callers, records them as pending
// and hands their ids to the queue. It also answers status queries.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sungwon/mailjobs/internal/job"
	"github.com/sungwon/mailjobs/internal/logger"
	"github.com/sungwon/mailjobs/internal/metrics"
	"github.com/sungwon/mailjobs/internal/queue"
	"github.com/sungwon/mailjobs/internal/resultstore"
)

// ErrNotFound is returned by GetStatus for ids that were never issued or
// whose record has expired.
var ErrNotFound = resultstore.ErrNotFound

// Receipt acknowledges an accepted job.
type Receipt struct {
	JobID   string     `json:"task_id"`
	Status  job.Status `json:"status"`
	Message string     `json:"message"`
}

// Service submits jobs for asynchronous execution by the executor pool.
type Service struct {
	store resultstore.Store
	queue queue.Queue
	log   zerolog.Logger
}

// NewService creates a Service backed by the given store and queue.
func NewService(store resultstore.Store, q queue.Queue, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		queue: q,
		log:   log.With().Str("component", "dispatch").Logger(),
	}
}

// SubmitSingle queues one message to one recipient.
func (s *Service) SubmitSingle(ctx context.Context, p job.SinglePayload) (Receipt, error) {
	return s.Submit(ctx, job.KindSingle, p)
}

// SubmitBulk queues the same message to every recipient in the list.
func (s *Service) SubmitBulk(ctx context.Context, p job.BulkPayload) (Receipt, error) {
	return s.Submit(ctx, job.KindBulk, p)
}

// SubmitTemplated queues a message whose body is rendered from a template.
func (s *Service) SubmitTemplated(ctx context.Context, p job.TemplatedPayload) (Receipt, error) {
	return s.Submit(ctx, job.KindTemplated, p)
}

// SubmitAttachment queues a message with a stored file attached.
func (s *Service) SubmitAttachment(ctx context.Context, p job.AttachmentPayload) (Receipt, error) {
	return s.Submit(ctx, job.KindAttachment, p)
}

// Submit persists a pending job of the given kind and enqueues its id. The
// payload is stored as given; its shape is checked only when the job runs.
// Errors are infrastructure failures from the store or the queue.
func (s *Service) Submit(ctx context.Context, kind job.Kind, payload any) (Receipt, error) {
	j, err := job.New(kind, payload)
	if err != nil {
		return Receipt{}, err
	}
	j.CorrelationID = logger.CorrelationIDFromContext(ctx)

	log := s.log.With().Str("job_id", j.ID).Str("kind", string(kind)).Logger()

	if err := s.store.Create(ctx, j); err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("create").Inc()
		log.Error().Err(err).Msg("failed to persist job")
		return Receipt{}, fmt.Errorf("create job: %w", err)
	}

	if err := s.queue.Enqueue(ctx, j.ID); err != nil {
		log.Error().Err(err).Msg("failed to enqueue job")
		s.abandon(context.WithoutCancel(ctx), log, j, err)
		return Receipt{}, fmt.Errorf("enqueue job: %w", err)
	}

	metrics.JobsSubmittedTotal.WithLabelValues(string(kind)).Inc()
	log.Info().Msg("job queued")

	return Receipt{
		JobID:   j.ID,
		Status:  job.StatusPending,
		Message: receiptMessage(j),
	}, nil
}

// abandon marks a job that never reached the queue as failed so it does not
// stay pending forever.
func (s *Service) abandon(ctx context.Context, log zerolog.Logger, j *job.Job, cause error) {
	outcome := job.Outcome{
		Status:  job.OutcomeError,
		Message: fmt.Sprintf("Error queueing %s job: %v", j.Kind, cause),
		Details: job.Describe(j.Kind, j.Payload),
	}
	raw, _ := json.Marshal(outcome)

	err := s.store.SetStatus(ctx, j.ID, job.StatusPending, job.StatusRunning, nil, "")
	if err == nil {
		err = s.store.SetStatus(ctx, j.ID, job.StatusRunning, job.StatusFailed, raw, cause.Error())
	}
	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("set_status").Inc()
		log.Error().Err(err).Msg("failed to mark unqueued job as failed")
	}
}

// GetStatus returns the job record for id. It never blocks on execution.
func (s *Service) GetStatus(ctx context.Context, id string) (*job.Job, error) {
	j, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, resultstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		metrics.StoreErrorsTotal.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return j, nil
}

func receiptMessage(j *job.Job) string {
	switch j.Kind {
	case job.KindBulk:
		var p job.BulkPayload
		_ = json.Unmarshal(j.Payload, &p)
		return fmt.Sprintf("Bulk email task has been queued for %d recipients", len(p.RecipientList))
	case job.KindTemplated:
		return "Template email task has been queued"
	case job.KindAttachment:
		return "Email with attachment task has been queued"
	}
	return "Email task has been queued"
}
