package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Stdout writes a summary of every message to a writer instead of sending
// it. Intended for development; every message is reported as sent.
type Stdout struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewStdout creates a Stdout transport that prints to os.Stdout.
func NewStdout() *Stdout {
	return NewWriter(os.Stdout)
}

// NewWriter creates a Stdout transport that prints to w.
func NewWriter(w io.Writer) *Stdout {
	return &Stdout{writer: w}
}

func (s *Stdout) GetName() string { return "stdout" }

// Send prints the message details and returns a sent result.
func (s *Stdout) Send(_ context.Context, msg *Message) (*Result, error) {
	var b strings.Builder
	b.WriteString("--- stdout transport: message ---\n")
	fmt.Fprintf(&b, "ID:      %s\n", msg.ID)
	fmt.Fprintf(&b, "From:    %s\n", msg.From)
	fmt.Fprintf(&b, "To:      %s\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	fmt.Fprintf(&b, "Text:    (%d bytes)\n", len(msg.TextBody))
	if msg.HTMLBody != "" {
		fmt.Fprintf(&b, "HTML:    (%d bytes)\n", len(msg.HTMLBody))
	}
	for _, a := range msg.Attachments {
		fmt.Fprintf(&b, "Attach:  %s (%s, %d bytes)\n", a.Filename, a.ContentType, len(a.Content))
	}
	b.WriteString("--- end ---\n")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.writer, b.String()); err != nil {
		return nil, &Error{Provider: "stdout", Op: "write", Err: err}
	}

	return sent("stdout-" + msg.ID), nil
}

// HealthCheck always returns nil since stdout is always available.
func (s *Stdout) HealthCheck(_ context.Context) error {
	return nil
}
