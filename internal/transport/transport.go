// Package transport delivers composed email messages through a mail
// provider: an SMTP relay, Amazon SES, or a development sink.
package transport

import (
	"context"
	"time"
)

// Transport sends one message. A nil error with a rejected Result means the
// provider declined the message; a non-nil error means the attempt itself
// failed.
type Transport interface {
	// Send delivers a message and returns the provider's verdict.
	Send(ctx context.Context, msg *Message) (*Result, error)
	// GetName returns the transport's identifier (e.g., "smtp", "ses").
	GetName() string
	// HealthCheck verifies the provider is reachable and functional.
	HealthCheck(ctx context.Context) error
}

// Message represents an email message to be delivered.
type Message struct {
	ID          string
	From        string
	To          []string
	Subject     string
	Headers     map[string]string
	TextBody    string
	HTMLBody    string // optional alternative
	Attachments []Attachment
}

// Attachment is one file attached to a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Status is the provider's verdict on a message.
type Status string

const (
	StatusSent     Status = "sent"
	StatusRejected Status = "rejected"
)

// Result contains the outcome of a delivery attempt.
type Result struct {
	ProviderMessageID string
	Status            Status
	Reason            string // set when the provider rejected the message
	Timestamp         time.Time
	Metadata          map[string]string
}

// Sent reports whether the provider accepted the message.
func (r *Result) Sent() bool {
	return r != nil && r.Status == StatusSent
}

func sent(id string) *Result {
	return &Result{ProviderMessageID: id, Status: StatusSent, Timestamp: time.Now()}
}

func rejected(reason string) *Result {
	return &Result{Status: StatusRejected, Reason: reason, Timestamp: time.Now()}
}
