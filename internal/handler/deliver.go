package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/rs/zerolog"

	"github.com/sungwon/mailjobs/internal/attachment"
	"github.com/sungwon/mailjobs/internal/job"
	"github.com/sungwon/mailjobs/internal/logger"
	"github.com/sungwon/mailjobs/internal/metrics"
	"github.com/sungwon/mailjobs/internal/render"
	"github.com/sungwon/mailjobs/internal/transport"
)

// Deliverer holds the collaborators the handlers send mail with.
type Deliverer struct {
	transport   transport.Transport
	renderer    render.Renderer
	attachments attachment.Store
	from        string
}

// NewDeliverer creates a Deliverer sending from the given default address.
func NewDeliverer(t transport.Transport, r render.Renderer, a attachment.Store, from string) *Deliverer {
	return &Deliverer{
		transport:   t,
		renderer:    r,
		attachments: a,
		from:        from,
	}
}

// email is one message to one recipient before it is handed to the transport.
type email struct {
	id         string
	to         string
	subject    string
	text       string
	html       string
	attachment *transport.Attachment
	details    job.Details
}

// send is the delivery step shared by every handler.
func (d *Deliverer) send(ctx context.Context, e email) job.Outcome {
	log := logger.FromContext(ctx).With().
		Str("recipient", e.to).
		Str("transport", d.transport.GetName()).
		Logger()

	msg := &transport.Message{
		ID:       e.id,
		From:     d.from,
		To:       []string{e.to},
		Subject:  e.subject,
		Headers:  map[string]string{"X-Job-ID": e.id},
		TextBody: e.text,
		HTMLBody: e.html,
	}
	if e.attachment != nil {
		msg.Attachments = []transport.Attachment{*e.attachment}
	}

	res, err := d.transport.Send(ctx, msg)
	if err != nil {
		log.Error().Err(err).Msg("transport error")
		return job.Outcome{
			Status:  job.OutcomeError,
			Message: fmt.Sprintf("Error sending email to %s: %v", e.to, err),
			Details: e.details,
		}
	}
	if !res.Sent() {
		log.Warn().Str("reason", res.Reason).Msg("message rejected")
		return job.Outcome{
			Status:  job.OutcomeFailed,
			Message: fmt.Sprintf("Failed to send email to %s", e.to),
			Details: e.details,
		}
	}

	log.Info().Str("provider_message_id", res.ProviderMessageID).Msg("message sent")
	msgText := fmt.Sprintf("Email sent successfully to %s", e.to)
	if e.attachment != nil {
		msgText = fmt.Sprintf("Email with attachment sent successfully to %s", e.to)
	}
	return job.Outcome{Status: job.OutcomeSuccess, Message: msgText, Details: e.details}
}

// Single delivers one message to one recipient.
func (d *Deliverer) Single(ctx context.Context, j *job.Job) (any, error) {
	var p job.SinglePayload
	if err := job.DecodePayload(j, &p); err != nil {
		return nil, err
	}
	return d.send(ctx, email{
		id:      j.ID,
		to:      p.RecipientEmail,
		subject: p.Subject,
		text:    p.Message,
		html:    deref(p.HTMLMessage),
		details: job.Details{To: p.RecipientEmail, Subject: p.Subject},
	}), nil
}

// Bulk delivers the same message to every recipient in input order. Each
// recipient is isolated: an error or panic affects only its own entry.
func (d *Deliverer) Bulk(ctx context.Context, j *job.Job) (any, error) {
	var p job.BulkPayload
	if err := job.DecodePayload(j, &p); err != nil {
		return nil, err
	}

	out := job.NewBulkOutcome(len(p.RecipientList))
	for i, rcpt := range p.RecipientList {
		o := d.sendIsolated(ctx, email{
			id:      fmt.Sprintf("%s-%d", j.ID, i),
			to:      rcpt,
			subject: p.Subject,
			text:    p.Message,
			html:    deref(p.HTMLMessage),
			details: job.Details{To: rcpt, Subject: p.Subject},
		})
		metrics.BulkRecipientsTotal.WithLabelValues(string(o.Status)).Inc()
		out.Add(o)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Int("total", out.Summary.Total).
		Int("success", out.Summary.Success).
		Int("failed", out.Summary.Failed).
		Msg("bulk job completed")
	return out, nil
}

func (d *Deliverer) sendIsolated(ctx context.Context, e email) (o job.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log := logger.FromContext(ctx)
			log.Error().
				Str("recipient", e.to).
				Interface("panic", r).
				Msg("recovered panic during delivery")
			o = job.Outcome{
				Status:  job.OutcomeError,
				Message: fmt.Sprintf("Error sending email to %s: %v", e.to, r),
				Details: e.details,
			}
		}
	}()
	return d.send(ctx, e)
}

// Templated renders the named template to HTML, derives the plain-text body
// from it and delivers both. A render failure skips delivery entirely.
func (d *Deliverer) Templated(ctx context.Context, j *job.Job) (any, error) {
	var p job.TemplatedPayload
	if err := job.DecodePayload(j, &p); err != nil {
		return nil, err
	}
	details := job.Details{To: p.RecipientEmail, Subject: p.Subject, Template: p.TemplateName}

	html, err := d.renderer.Render(ctx, p.TemplateName, p.Context)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("template", p.TemplateName).Msg("template render failed")
		cause := err
		var re *render.Error
		if errors.As(err, &re) {
			cause = re.Err
		}
		return errorOutcome(fmt.Sprintf("Error rendering template %s: %v", p.TemplateName, cause), details), nil
	}

	return d.send(ctx, email{
		id:      j.ID,
		to:      p.RecipientEmail,
		subject: p.Subject,
		text:    render.StripTags(html),
		html:    html,
		details: details,
	}), nil
}

// Attachment checks the file exists, reads it and delivers it attached.
// A missing file is reported without ever opening it.
func (d *Deliverer) Attachment(ctx context.Context, j *job.Job) (any, error) {
	var p job.AttachmentPayload
	if err := job.DecodePayload(j, &p); err != nil {
		return nil, err
	}
	details := job.Details{To: p.RecipientEmail, Subject: p.Subject, Attachment: p.AttachmentPath}
	log := logger.FromContext(ctx).With().Str("attachment_path", p.AttachmentPath).Logger()

	ok, err := d.attachments.Exists(ctx, p.AttachmentPath)
	if err != nil {
		log.Error().Err(err).Msg("attachment lookup failed")
		return errorOutcome(fmt.Sprintf("Error reading attachment %s: %v", p.AttachmentPath, err), details), nil
	}
	if !ok {
		log.Warn().Msg("attachment not found")
		return errorOutcome("Attachment file not found: "+p.AttachmentPath, details), nil
	}

	content, err := d.readAttachment(ctx, p.AttachmentPath, log)
	if err != nil {
		if errors.Is(err, attachment.ErrNotFound) {
			return errorOutcome("Attachment file not found: "+p.AttachmentPath, details), nil
		}
		return errorOutcome(fmt.Sprintf("Error reading attachment %s: %v", p.AttachmentPath, err), details), nil
	}

	filename := deref(p.Filename)
	if filename == "" {
		filename = path.Base(p.AttachmentPath)
	}
	return d.send(ctx, email{
		id:      j.ID,
		to:      p.RecipientEmail,
		subject: p.Subject,
		text:    p.Message,
		html:    deref(p.HTMLMessage),
		attachment: &transport.Attachment{
			Filename:    filename,
			ContentType: transport.ContentTypeFor(filename),
			Content:     content,
		},
		details: details,
	}), nil
}

// readAttachment reads the whole file; the handle is closed on every path.
func (d *Deliverer) readAttachment(ctx context.Context, p string, log zerolog.Logger) ([]byte, error) {
	rc, err := d.attachments.Open(ctx, p)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("close attachment")
		}
	}()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	return content, nil
}

func errorOutcome(msg string, details job.Details) job.Outcome {
	return job.Outcome{Status: job.OutcomeError, Message: msg, Details: details}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
