package transport

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"path"
	"sort"
	"strings"
	"time"
)

const defaultContentType = "application/octet-stream"

// ContentTypeFor guesses a MIME type from a file name's extension.
func ContentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(filename))); ct != "" {
		return ct
	}
	return defaultContentType
}

// Compose renders msg as an RFC 5322 message. The body is text/plain, or
// multipart/alternative when an HTML body is present, wrapped in
// multipart/mixed when there are attachments.
func Compose(msg *Message, date time.Time) ([]byte, error) {
	var buf bytes.Buffer

	writeHeader(&buf, "From", msg.From)
	writeHeader(&buf, "To", strings.Join(msg.To, ", "))
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader(&buf, "Date", date.Format(time.RFC1123Z))
	if msg.ID != "" {
		writeHeader(&buf, "Message-ID", fmt.Sprintf("<%s@%s>", msg.ID, senderDomain(msg.From)))
	}
	keys := make([]string, 0, len(msg.Headers))
	for k := range msg.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeHeader(&buf, textproto.CanonicalMIMEHeaderKey(k), msg.Headers[k])
	}
	writeHeader(&buf, "MIME-Version", "1.0")

	if len(msg.Attachments) == 0 {
		if msg.HTMLBody == "" {
			writeHeader(&buf, "Content-Type", textPlain)
			writeHeader(&buf, "Content-Transfer-Encoding", "quoted-printable")
			buf.WriteString("\r\n")
			if err := writeQuotedPrintable(&buf, msg.TextBody); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		}
		alt := multipart.NewWriter(&buf)
		writeHeader(&buf, "Content-Type", "multipart/alternative; boundary="+alt.Boundary())
		buf.WriteString("\r\n")
		if err := writeAlternative(alt, msg); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	mixed := multipart.NewWriter(&buf)
	writeHeader(&buf, "Content-Type", "multipart/mixed; boundary="+mixed.Boundary())
	buf.WriteString("\r\n")

	if err := writeBodyPart(mixed, msg); err != nil {
		return nil, err
	}
	for _, a := range msg.Attachments {
		if err := writeAttachment(mixed, a); err != nil {
			return nil, err
		}
	}
	if err := mixed.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}
	return buf.Bytes(), nil
}

const (
	textPlain = "text/plain; charset=utf-8"
	textHTML  = "text/html; charset=utf-8"
)

// writeBodyPart adds the text or alternative body as the first part of a
// multipart/mixed message.
func writeBodyPart(mixed *multipart.Writer, msg *Message) error {
	if msg.HTMLBody == "" {
		part, err := mixed.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {textPlain},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return fmt.Errorf("create body part: %w", err)
		}
		return writeQuotedPrintable(part, msg.TextBody)
	}

	var nested bytes.Buffer
	alt := multipart.NewWriter(&nested)
	if err := writeAlternative(alt, msg); err != nil {
		return err
	}
	part, err := mixed.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"multipart/alternative; boundary=" + alt.Boundary()},
	})
	if err != nil {
		return fmt.Errorf("create body part: %w", err)
	}
	if _, err := part.Write(nested.Bytes()); err != nil {
		return fmt.Errorf("write body part: %w", err)
	}
	return nil
}

// writeAlternative writes the plain and HTML parts and closes alt.
func writeAlternative(alt *multipart.Writer, msg *Message) error {
	for _, p := range []struct {
		contentType string
		content     string
	}{
		{textPlain, msg.TextBody},
		{textHTML, msg.HTMLBody},
	} {
		part, err := alt.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return fmt.Errorf("create alternative part: %w", err)
		}
		if err := writeQuotedPrintable(part, p.content); err != nil {
			return err
		}
	}
	if err := alt.Close(); err != nil {
		return fmt.Errorf("close alternative: %w", err)
	}
	return nil
}

func writeAttachment(mw *multipart.Writer, a Attachment) error {
	ct := a.ContentType
	if ct == "" {
		ct = ContentTypeFor(a.Filename)
	}
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		mediaType, params = defaultContentType, map[string]string{}
	}
	params["name"] = a.Filename

	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {mime.FormatMediaType(mediaType, params)},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename})},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return fmt.Errorf("create attachment part %s: %w", a.Filename, err)
	}

	enc := base64.NewEncoder(base64.StdEncoding, &lineWrapper{w: part, max: 76})
	if _, err := enc.Write(a.Content); err != nil {
		return fmt.Errorf("encode attachment %s: %w", a.Filename, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode attachment %s: %w", a.Filename, err)
	}
	return nil
}

func writeQuotedPrintable(w io.Writer, s string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := io.WriteString(qp, s); err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	return nil
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

func senderDomain(from string) string {
	if at := strings.LastIndex(from, "@"); at >= 0 {
		return strings.Trim(from[at+1:], "> ")
	}
	return "localhost"
}

// lineWrapper inserts CRLF every max bytes.
type lineWrapper struct {
	w   io.Writer
	max int
	n   int
}

func (l *lineWrapper) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		room := l.max - l.n
		if room == 0 {
			if _, err := io.WriteString(l.w, "\r\n"); err != nil {
				return written, err
			}
			l.n = 0
			room = l.max
		}
		chunk := p
		if len(chunk) > room {
			chunk = chunk[:room]
		}
		n, err := l.w.Write(chunk)
		written += n
		l.n += n
		if err != nil {
			return written, err
		}
		p = p[len(chunk):]
	}
	return written, nil
}
