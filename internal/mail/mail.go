// Package mail relays outbound notifications through an SMTP server.
//
// The only message the application sends today is the join-request
// notification to a project's author. Delivery internals (queuing, bounce
// handling) belong to the relay; this package hands over one message per
// call and reports whether the relay accepted it.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"github.com/rs/xid"
)

// Message is one outbound email.
type Message struct {
	To      string
	ReplyTo string
	Subject string
	Body    string
}

// Mailer sends a Message. Implementations must not retry: exactly one
// delivery attempt is made per call.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// ErrDisabled is returned by Disabled for every send.
var ErrDisabled = errors.New("mail: relay is not configured")

// Disabled is the Mailer used when no relay credentials are configured.
// It fails every send so callers report an error instead of a fake success.
type Disabled struct{}

func (Disabled) Send(context.Context, Message) error { return ErrDisabled }

// Config holds the SMTP relay settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// sendFunc matches smtp.SendMail so tests can capture the wire message.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers through an SMTP relay with PLAIN auth over STARTTLS.
type SMTPMailer struct {
	cfg    Config
	logger *slog.Logger
	send   sendFunc
	now    func() time.Time
}

// NewSMTPMailer creates a mailer for cfg. From defaults to Username.
func NewSMTPMailer(cfg Config, logger *slog.Logger) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, errors.New("mail: SMTP host and port are required")
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.From == "" {
		return nil, errors.New("mail: sender address is required")
	}
	return &SMTPMailer{cfg: cfg, logger: logger, send: smtp.SendMail, now: time.Now}, nil
}

// Send makes one delivery attempt.
//
// net/smtp has no context support, so the attempt runs in a goroutine and
// Send returns early if ctx ends first. The attempt itself is not cancelled.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("mail: recipient is required")
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	raw := m.build(msg)

	done := make(chan error, 1)
	go func() {
		done <- m.send(addr, auth, m.cfg.From, []string{msg.To}, raw)
	}()

	select {
	case err := <-done:
		if err != nil {
			m.logger.Error("mail relay rejected message",
				slog.String("to", msg.To),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("mail: sending to %s: %w", msg.To, err)
		}
		m.logger.Info("mail sent", slog.String("to", msg.To))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mail: sending to %s: %w", msg.To, ctx.Err())
	}
}

// build renders the RFC 5322 message. Header values are stripped of CR and
// LF so user-supplied text cannot add headers.
func (m *SMTPMailer) build(msg Message) []byte {
	headers := [][2]string{
		{"From", m.cfg.From},
		{"To", msg.To},
		{"Subject", mime.QEncoding.Encode("utf-8", headerValue(msg.Subject))},
		{"Date", m.now().Format(time.RFC1123Z)},
		{"Message-ID", fmt.Sprintf("<%s@collabgrow>", xid.New().String())},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/plain; charset=UTF-8"},
	}
	if msg.ReplyTo != "" {
		headers = append(headers, [2]string{"Reply-To", msg.ReplyTo})
	}

	var b strings.Builder
	for _, h := range headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h[0], headerValue(h[1]))
	}
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

func headerValue(s string) string {
	return strings.NewReplacer("\r", "", "\n", " ").Replace(s)
}

var (
	_ Mailer = (*SMTPMailer)(nil)
	_ Mailer = Disabled{}
)
