package email

import (
	"bufio"
	"context"
	"errors"
	"mime"
	"net"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bissquit/onestop-itsm/internal/notifications"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSMTP accepts one session per connection and records delivered data.
type fakeSMTP struct {
	ln       net.Listener
	rcptCode string

	mu       sync.Mutex
	rcpts    []string
	messages []string
}

func newFakeSMTP(t *testing.T, rcptCode string) *fakeSMTP {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeSMTP{ln: ln, rcptCode: rcptCode}
	go f.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return f
}

func (f *fakeSMTP) port() int {
	return f.ln.Addr().(*net.TCPAddr).Port
}

func (f *fakeSMTP) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.session(conn)
	}
}

func (f *fakeSMTP) session(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	tp := textproto.NewConn(conn)

	_ = tp.PrintfLine("220 fake ready")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		switch verb {
		case "EHLO", "HELO":
			_ = tp.PrintfLine("250 fake")
		case "MAIL":
			_ = tp.PrintfLine("250 ok")
		case "RCPT":
			f.mu.Lock()
			f.rcpts = append(f.rcpts, line)
			f.mu.Unlock()
			_ = tp.PrintfLine("%s recipient", f.rcptCode)
		case "DATA":
			_ = tp.PrintfLine("354 go ahead")
			lines, err := tp.ReadDotLines()
			if err != nil {
				return
			}
			f.mu.Lock()
			f.messages = append(f.messages, strings.Join(lines, "\n"))
			f.mu.Unlock()
			_ = tp.PrintfLine("250 queued")
		case "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("502 not implemented")
		}
	}
}

func (f *fakeSMTP) delivered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

func newTestSender(t *testing.T, port int) *Sender {
	t.Helper()

	s, err := NewSender(Config{
		SMTPHost:    "127.0.0.1",
		SMTPPort:    port,
		FromAddress: "OneStop ITSM <itsm@example.com>",
	})
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, 7, 29, 10, 0, 0, 0, time.UTC) }
	return s
}

func TestNewSender_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"missing smtp host", Config{FromAddress: "itsm@example.com"}, "SMTP host is required"},
		{"missing from address", Config{SMTPHost: "smtp.example.com"}, "invalid from address"},
		{"malformed from address", Config{SMTPHost: "smtp.example.com", FromAddress: "itsm at example"}, "invalid from address"},
		{"valid", Config{SMTPHost: "smtp.example.com", FromAddress: "OneStop <itsm@example.com>"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := NewSender(tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, notifications.ChannelEmail, sender.Type())
			assert.Equal(t, defaultPort, sender.config.SMTPPort)
			assert.Nil(t, sender.auth)
		})
	}
}

func TestSender_Send_Delivers(t *testing.T) {
	server := newFakeSMTP(t, "250")
	sender := newTestSender(t, server.port())

	err := sender.Send(context.Background(), notifications.Notification{
		To:      "jane@example.com",
		Subject: "[New Incident] INC001007: VPN drops",
		Body:    "Caller: Jane Smith\nPriority: 4 - Low",
	})
	require.NoError(t, err)

	msgs := server.delivered()
	require.Len(t, msgs, 1)
	server.mu.Lock()
	assert.Equal(t, []string{"RCPT TO:<jane@example.com>"}, server.rcpts)
	server.mu.Unlock()

	parsed, err := mail.ReadMessage(strings.NewReader(msgs[0]))
	require.NoError(t, err)
	assert.Equal(t, `"OneStop ITSM" <itsm@example.com>`, parsed.Header.Get("From"))
	assert.Equal(t, "<jane@example.com>", parsed.Header.Get("To"))
	assert.Equal(t, "[New Incident] INC001007: VPN drops", parsed.Header.Get("Subject"))
	assert.Equal(t, "Mon, 29 Jul 2024 10:00:00 +0000", parsed.Header.Get("Date"))
	assert.True(t, strings.HasSuffix(parsed.Header.Get("Message-ID"), "@127.0.0.1>"))
}

func TestSender_Send_RejectedRecipientIsPermanent(t *testing.T) {
	server := newFakeSMTP(t, "550")
	sender := newTestSender(t, server.port())

	err := sender.Send(context.Background(), notifications.Notification{To: "ghost@example.com", Subject: "s", Body: "b"})

	var wrapped *notifications.RetryableError
	require.ErrorAs(t, err, &wrapped)
	assert.False(t, wrapped.IsRetryable())
	assert.Empty(t, server.delivered())
}

func TestSender_Send_GreylistedRecipientIsRetryable(t *testing.T) {
	server := newFakeSMTP(t, "451")
	sender := newTestSender(t, server.port())

	err := sender.Send(context.Background(), notifications.Notification{To: "jane@example.com", Subject: "s", Body: "b"})

	var wrapped *notifications.RetryableError
	require.ErrorAs(t, err, &wrapped)
	assert.True(t, wrapped.IsRetryable())
}

func TestSender_Send_DialFailureIsRetryable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	err = newTestSender(t, port).Send(context.Background(), notifications.Notification{To: "jane@example.com"})

	var wrapped *notifications.RetryableError
	require.ErrorAs(t, err, &wrapped)
	assert.True(t, wrapped.IsRetryable())
}

func TestSender_Send_InvalidRecipient(t *testing.T) {
	err := newTestSender(t, 25).Send(context.Background(), notifications.Notification{To: "Jane Smith"})

	var wrapped *notifications.RetryableError
	require.ErrorAs(t, err, &wrapped)
	assert.False(t, wrapped.IsRetryable())
}

func TestSender_BuildMessage_EncodesUnicodeSubject(t *testing.T) {
	sender := newTestSender(t, 25)
	to := &mail.Address{Address: "jane@example.com"}

	raw := string(sender.buildMessage(to, "[Updated] INC001007: Drucker défekt", "line one\nline two"))

	assert.Contains(t, raw, "Subject: =?utf-8?q?")
	assert.Contains(t, raw, "\r\n\r\nline one\r\nline two\r\n")

	parsed, err := mail.ReadMessage(bufio.NewReader(strings.NewReader(raw)))
	require.NoError(t, err)
	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "[Updated] INC001007: Drucker défekt", subject)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil error", nil, false},
		{"421 service unavailable", &textproto.Error{Code: 421, Msg: "Service not available"}, true},
		{"452 insufficient storage", &textproto.Error{Code: 452, Msg: "Insufficient storage"}, true},
		{"550 mailbox not found", &textproto.Error{Code: 550, Msg: "Mailbox not found"}, false},
		{"535 auth failed", errors.Join(errors.New("auth"), &textproto.Error{Code: 535}), false},
		{"dial error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
		{"canceled", context.Canceled, false},
		{"unknown", errors.New("short write"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}
