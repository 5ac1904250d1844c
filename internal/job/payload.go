package job

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SinglePayload sends one message to one recipient.
type SinglePayload struct {
	RecipientEmail string  `json:"recipient_email"`
	Subject        string  `json:"subject"`
	Message        string  `json:"message"`
	HTMLMessage    *string `json:"html_message,omitempty"`
}

// BulkPayload sends the same message to every address in RecipientList.
type BulkPayload struct {
	RecipientList []string `json:"recipient_list"`
	Subject       string   `json:"subject"`
	Message       string   `json:"message"`
	HTMLMessage   *string  `json:"html_message,omitempty"`
}

// TemplatedPayload renders TemplateName with Context to build the body.
type TemplatedPayload struct {
	RecipientEmail string         `json:"recipient_email"`
	Subject        string         `json:"subject"`
	TemplateName   string         `json:"template_name"`
	Context        map[string]any `json:"context,omitempty"`
}

// AttachmentPayload sends a message with the file at AttachmentPath attached.
// Filename overrides the attachment name; it defaults to the path's base name.
type AttachmentPayload struct {
	RecipientEmail string  `json:"recipient_email"`
	Subject        string  `json:"subject"`
	Message        string  `json:"message"`
	AttachmentPath string  `json:"attachment_path"`
	Filename       *string `json:"filename,omitempty"`
	HTMLMessage    *string `json:"html_message,omitempty"`
}

// Describe returns the recipient and subject details of a raw payload for
// error reporting. Undecodable payloads yield empty details.
func Describe(kind Kind, raw json.RawMessage) Details {
	switch kind {
	case KindSingle:
		var p SinglePayload
		_ = json.Unmarshal(raw, &p)
		return Details{To: p.RecipientEmail, Subject: p.Subject}
	case KindBulk:
		var p BulkPayload
		_ = json.Unmarshal(raw, &p)
		return Details{To: strings.Join(p.RecipientList, ", "), Subject: p.Subject}
	case KindTemplated:
		var p TemplatedPayload
		_ = json.Unmarshal(raw, &p)
		return Details{To: p.RecipientEmail, Subject: p.Subject, Template: p.TemplateName}
	case KindAttachment:
		var p AttachmentPayload
		_ = json.Unmarshal(raw, &p)
		return Details{To: p.RecipientEmail, Subject: p.Subject, Attachment: p.AttachmentPath}
	}
	return Details{}
}

// DecodePayload unmarshals a job's payload into dst.
func DecodePayload(j *Job, dst any) error {
	if err := json.Unmarshal(j.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload for job %s: %w", j.Kind, j.ID, err)
	}
	return nil
}
