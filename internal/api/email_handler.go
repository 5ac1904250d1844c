package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sungwon/mailjobs/internal/dispatch"
	"github.com/sungwon/mailjobs/internal/job"
	"github.com/sungwon/mailjobs/internal/logger"
)

// JobService is the dispatcher the HTTP surface submits to and reads from.
type JobService interface {
	SubmitSingle(ctx context.Context, p job.SinglePayload) (dispatch.Receipt, error)
	SubmitBulk(ctx context.Context, p job.BulkPayload) (dispatch.Receipt, error)
	SubmitTemplated(ctx context.Context, p job.TemplatedPayload) (dispatch.Receipt, error)
	SubmitAttachment(ctx context.Context, p job.AttachmentPayload) (dispatch.Receipt, error)
	GetStatus(ctx context.Context, id string) (*job.Job, error)
}

// SendEmailHandler handles POST /api/v1/send-email/.
func SendEmailHandler(svc JobService) http.HandlerFunc {
	return submitHandler(validateSingle, svc.SubmitSingle)
}

// SendBulkEmailHandler handles POST /api/v1/send-bulk-email/.
func SendBulkEmailHandler(svc JobService) http.HandlerFunc {
	return submitHandler(validateBulk, svc.SubmitBulk)
}

// SendTemplateEmailHandler handles POST /api/v1/send-template-email/.
func SendTemplateEmailHandler(svc JobService) http.HandlerFunc {
	return submitHandler(validateTemplated, svc.SubmitTemplated)
}

// SendEmailWithAttachmentHandler handles POST /api/v1/send-email-with-attachment/.
func SendEmailWithAttachmentHandler(svc JobService) http.HandlerFunc {
	return submitHandler(validateAttachment, svc.SubmitAttachment)
}

// submitHandler decodes a payload of type P, validates it and submits it.
// Accepted jobs answer 202 with the dispatcher's receipt.
func submitHandler[P any](validate func(*P) fieldErrors, submit func(context.Context, P) (dispatch.Receipt, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p P
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if errs := validate(&p); len(errs) > 0 {
			respondValidationErrors(w, errs)
			return
		}

		receipt, err := submit(r.Context(), p)
		if err != nil {
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Msg("failed to submit job")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		respondJSON(w, http.StatusAccepted, receipt)
	}
}

func validateSingle(p *job.SinglePayload) fieldErrors {
	errs := fieldErrors{}
	errs.email("recipient_email", p.RecipientEmail)
	errs.subject(p.Subject)
	errs.required("message", p.Message)
	return errs
}

func validateBulk(p *job.BulkPayload) fieldErrors {
	errs := fieldErrors{}
	if p.RecipientList == nil {
		errs.add("recipient_list", "This field is required.")
	}
	for i, addr := range p.RecipientList {
		if !validEmail(addr) {
			errs.add("recipient_list", fmt.Sprintf("Item %d: Enter a valid email address.", i))
		}
	}
	errs.subject(p.Subject)
	errs.required("message", p.Message)
	return errs
}

func validateTemplated(p *job.TemplatedPayload) fieldErrors {
	errs := fieldErrors{}
	errs.email("recipient_email", p.RecipientEmail)
	errs.subject(p.Subject)
	errs.required("template_name", p.TemplateName)
	if p.Context == nil {
		p.Context = map[string]any{}
	}
	return errs
}

func validateAttachment(p *job.AttachmentPayload) fieldErrors {
	errs := fieldErrors{}
	errs.email("recipient_email", p.RecipientEmail)
	errs.subject(p.Subject)
	errs.required("message", p.Message)
	errs.required("attachment_path", p.AttachmentPath)
	return errs
}
