// internal/mailer/mailer.go

// Package mailer is the outbound email transport: fire-and-forget SMTP
// delivery of rendered notification messages.
package mailer

import (
	"errors"
	"log/slog"

	"gopkg.in/mail.v2"
)

// ErrNotConfigured is returned by the disabled sender when no SMTP host
// was configured. Delivery failures are non-fatal to callers.
var ErrNotConfigured = errors.New("mailer: email transport not configured")

// Message is one outbound email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Sender delivers a single message. Implementations report failure via
// the returned error; there is no retry at this layer.
type Sender interface {
	Send(msg Message) error
}

// SMTP sends messages through an SMTP relay.
type SMTP struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// Config holds SMTP transport settings. An empty Host disables delivery.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// New returns an SMTP sender, or a disabled sender that fails every
// delivery with ErrNotConfigured when no host is set. Matching the rest
// of the system's degradation policy, a missing transport is an
// operational warning, not a startup failure.
func New(cfg Config, logger *slog.Logger) Sender {
	if cfg.Host == "" {
		logger.Warn("SMTP host not configured, email delivery disabled")
		return disabled{}
	}
	return &SMTP{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
	}
}

// Send delivers one message.
func (c *SMTP) Send(msg Message) error {
	m := mail.NewMessage()
	m.SetHeader("From", c.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTMLBody)

	dialer := mail.NewDialer(c.host, c.port, c.username, c.password)
	return dialer.DialAndSend(m)
}

type disabled struct{}

func (disabled) Send(Message) error { return ErrNotConfigured }
