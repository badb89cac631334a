// Package email mails incident notifications to callers over SMTP.
package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/bissquit/onestop-itsm/internal/notifications"
	"github.com/google/uuid"
)

const (
	defaultPort = 587
	dialTimeout = 10 * time.Second
)

// Config holds SMTP settings.
type Config struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	FromAddress  string
}

// Sender mails one notification per recipient.
type Sender struct {
	config Config
	from   *mail.Address
	auth   smtp.Auth
	now    func() time.Time
}

// NewSender creates a new email sender.
func NewSender(config Config) (*Sender, error) {
	if config.SMTPHost == "" {
		return nil, errors.New("email sender: SMTP host is required")
	}
	from, err := mail.ParseAddress(config.FromAddress)
	if err != nil {
		return nil, fmt.Errorf("email sender: invalid from address %q: %w", config.FromAddress, err)
	}
	if config.SMTPPort == 0 {
		config.SMTPPort = defaultPort
	}

	var auth smtp.Auth
	if config.SMTPUser != "" && config.SMTPPassword != "" {
		auth = smtp.PlainAuth("", config.SMTPUser, config.SMTPPassword, config.SMTPHost)
	}

	slog.Info("email sender configured",
		"smtp_host", config.SMTPHost,
		"smtp_port", config.SMTPPort,
		"from_address", from.Address,
	)

	return &Sender{
		config: config,
		from:   from,
		auth:   auth,
		now:    time.Now,
	}, nil
}

// Type returns the channel type.
func (s *Sender) Type() notifications.ChannelType {
	return notifications.ChannelEmail
}

// Send mails the notification. SMTP 5xx replies and bad addresses are
// permanent; everything else may be retried.
func (s *Sender) Send(ctx context.Context, notification notifications.Notification) error {
	to, err := mail.ParseAddress(notification.To)
	if err != nil {
		return notifications.NewNonRetryableError(fmt.Errorf("invalid recipient %q: %w", notification.To, err))
	}

	msg := s.buildMessage(to, notification.Subject, notification.Body)
	if err := s.deliver(ctx, to.Address, msg); err != nil {
		return classify(err)
	}
	return nil
}

func (s *Sender) buildMessage(to *mail.Address, subject, body string) []byte {
	var b strings.Builder

	header := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}
	header("From", s.from.String())
	header("To", to.String())
	header("Subject", mime.QEncoding.Encode("utf-8", subject))
	header("Date", s.now().Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), s.config.SMTPHost))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="utf-8"`)
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")

	body = strings.ReplaceAll(body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")

	return []byte(b.String())
}

func (s *Sender) deliver(ctx context.Context, rcpt string, msg []byte) error {
	addr := net.JoinHostPort(s.config.SMTPHost, strconv.Itoa(s.config.SMTPPort))

	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{ServerName: s.config.SMTPHost, MinVersion: tls.VersionTLS12}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if s.auth != nil {
		if err := client.Auth(s.auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := client.Mail(s.from.Address); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(rcpt); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("end data: %w", err)
	}
	return client.Quit()
}

// classify wraps err with its retry decision.
func classify(err error) error {
	if IsRetryable(err) {
		return notifications.NewRetryableError(err)
	}
	return notifications.NewNonRetryableError(err)
}

// IsRetryable reports whether a delivery error is worth another attempt.
// Transient SMTP replies (4xx) and network failures are; permanent replies
// (5xx) are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return protoErr.Code >= 400 && protoErr.Code < 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return !errors.Is(err, context.Canceled)
}
