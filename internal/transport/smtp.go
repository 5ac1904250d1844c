package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
)

// TLS modes for the SMTP transport.
const (
	TLSStartTLS = "starttls"
	TLSImplicit = "implicit"
	TLSNone     = "none"
)

// SMTPConfig holds SMTP relay connection settings.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	TLSMode   string // starttls (default), implicit, none
	Insecure  bool   // skip certificate verification
	LocalName string // EHLO name, defaults to localhost
	Timeout   time.Duration
}

// SMTP relays messages to an SMTP server. Each Send uses a fresh connection.
type SMTP struct {
	cfg  SMTPConfig
	addr string
}

// NewSMTP creates an SMTP transport.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp: host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.TLSMode == "" {
		cfg.TLSMode = TLSStartTLS
	}
	switch cfg.TLSMode {
	case TLSStartTLS, TLSImplicit, TLSNone:
	default:
		return nil, fmt.Errorf("smtp: unknown TLS mode: %s (use starttls, implicit, or none)", cfg.TLSMode)
	}
	if cfg.LocalName == "" {
		cfg.LocalName = "localhost"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTP{
		cfg:  cfg,
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
	}, nil
}

func (s *SMTP) GetName() string { return "smtp" }

// Send performs one SMTP transaction. A permanent (5xx) reply to MAIL, RCPT
// or DATA is reported as a rejected result; every other failure is an *Error.
func (s *SMTP) Send(ctx context.Context, msg *Message) (*Result, error) {
	raw, err := Compose(msg, time.Now())
	if err != nil {
		return nil, &Error{Provider: "smtp", Op: "compose", Err: err}
	}

	c, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if err := c.Mail(msg.From, nil); err != nil {
		return s.classify("mail from", err)
	}
	for _, rcpt := range msg.To {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return s.classify("rcpt to "+rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return s.classify("data", err)
	}
	if _, err := w.Write(raw); err != nil {
		return nil, &Error{Provider: "smtp", Op: "write", Err: err}
	}
	if err := w.Close(); err != nil {
		return s.classify("data close", err)
	}

	// The message is accepted once DATA completes.
	_ = c.Quit()

	return sent(msg.ID), nil
}

// HealthCheck connects, authenticates and sends NOOP.
func (s *SMTP) HealthCheck(ctx context.Context) error {
	c, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Noop(); err != nil {
		return &Error{Provider: "smtp", Op: "noop", Err: err}
	}
	return c.Quit()
}

func (s *SMTP) dial(ctx context.Context) (*gosmtp.Client, error) {
	dialer := &net.Dialer{Timeout: s.cfg.Timeout}

	var conn net.Conn
	var err error
	if s.cfg.TLSMode == TLSImplicit {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: s.tlsConfig()}
		conn, err = tlsDialer.DialContext(ctx, "tcp", s.addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", s.addr)
	}
	if err != nil {
		return nil, &Error{Provider: "smtp", Op: "dial " + s.addr, Err: err}
	}

	deadline := time.Now().Add(s.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	c := gosmtp.NewClient(conn)
	if err := c.Hello(s.cfg.LocalName); err != nil {
		c.Close()
		return nil, s.protocolError("hello", err)
	}
	if s.cfg.TLSMode == TLSStartTLS {
		if err := c.StartTLS(s.tlsConfig()); err != nil {
			c.Close()
			return nil, s.protocolError("starttls", err)
		}
	}
	if s.cfg.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)); err != nil {
			c.Close()
			return nil, s.protocolError("auth", err)
		}
	}
	return c, nil
}

func (s *SMTP) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.Insecure, //nolint:gosec // opt-in for test relays
		MinVersion:         tls.VersionTLS12,
	}
}

// classify turns a permanent SMTP reply into a rejection and anything else
// into a transport error.
func (s *SMTP) classify(op string, err error) (*Result, error) {
	var se *gosmtp.SMTPError
	if errors.As(err, &se) && se.Code >= 500 && se.Code < 600 {
		return rejected(fmt.Sprintf("%s: %d %s", op, se.Code, se.Message)), nil
	}
	return nil, s.protocolError(op, err)
}

func (s *SMTP) protocolError(op string, err error) *Error {
	e := &Error{Provider: "smtp", Op: op, Err: err}
	var se *gosmtp.SMTPError
	if errors.As(err, &se) {
		e.Code = se.Code
	}
	return e
}
