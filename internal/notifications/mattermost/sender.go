// Package mattermost posts incident cards to resolver group channels through
// Mattermost incoming webhooks.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/notifications"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultUsername = "OneStop ITSM"

	// Responses are short acknowledgements; anything longer is truncated in errors.
	maxErrorBody = 512
)

// Card colors keyed by incident priority.
var priorityColors = map[domain.Priority]string{
	domain.PriorityCritical: "#d9534f",
	domain.PriorityHigh:     "#f0ad4e",
	domain.PriorityModerate: "#5bc0de",
	domain.PriorityLow:      "#9e9e9e",
}

// Config holds Mattermost sender configuration. Webhook URLs come from the
// resolver group mapping and arrive as the notification target.
type Config struct {
	Username string
	IconURL  string
	Timeout  time.Duration
}

// Sender delivers notifications as Mattermost message attachments.
type Sender struct {
	config     Config
	httpClient *http.Client
}

// NewSender creates a new Mattermost sender.
func NewSender(config Config) *Sender {
	if config.Username == "" {
		config.Username = defaultUsername
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Type returns the channel type.
func (s *Sender) Type() notifications.ChannelType {
	return notifications.ChannelMattermost
}

// Send posts the notification to the webhook in notification.To.
func (s *Sender) Send(ctx context.Context, notification notifications.Notification) error {
	hook, err := url.Parse(notification.To)
	if err != nil || hook.Scheme == "" || hook.Host == "" {
		return notifications.NewNonRetryableError(fmt.Errorf("invalid webhook url %q", redact(notification.To)))
	}

	body, err := json.Marshal(newWebhookPayload(s.config, notification))
	if err != nil {
		return notifications.NewNonRetryableError(fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.String(), bytes.NewReader(body))
	if err != nil {
		return notifications.NewNonRetryableError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return notifications.NewRetryableError(fmt.Errorf("post to %s: %w", redact(hook.String()), err))
	}
	defer func() { _ = resp.Body.Close() }()

	return classify(resp, hook.String())
}

type webhookPayload struct {
	Username    string       `json:"username,omitempty"`
	IconURL     string       `json:"icon_url,omitempty"`
	Attachments []attachment `json:"attachments"`
}

type attachment struct {
	Fallback  string `json:"fallback"`
	Color     string `json:"color,omitempty"`
	Title     string `json:"title"`
	TitleLink string `json:"title_link,omitempty"`
	Text      string `json:"text"`
}

func newWebhookPayload(cfg Config, n notifications.Notification) webhookPayload {
	return webhookPayload{
		Username: cfg.Username,
		IconURL:  cfg.IconURL,
		Attachments: []attachment{{
			Fallback:  n.Subject,
			Color:     priorityColors[n.Priority],
			Title:     n.Subject,
			TitleLink: n.Link,
			Text:      n.Body,
		}},
	}
}

// classify maps a webhook response to nil, a retryable error or a permanent one.
func classify(resp *http.Response, hook string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	status := resp.StatusCode

	switch {
	case status == http.StatusOK:
		slog.Debug("mattermost card posted", "webhook", redact(hook))
		return nil
	case status == http.StatusTooManyRequests, status >= 500:
		return notifications.NewRetryableError(fmt.Errorf("mattermost returned %d: %s", status, bytes.TrimSpace(raw)))
	case status == http.StatusNotFound, status == http.StatusUnauthorized, status == http.StatusForbidden:
		return notifications.NewNonRetryableError(fmt.Errorf("mattermost webhook rejected (%d)", status))
	default:
		return notifications.NewNonRetryableError(fmt.Errorf("mattermost returned %d: %s", status, bytes.TrimSpace(raw)))
	}
}

// redact keeps the host of a webhook URL and hides the secret hook key.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "<invalid>"
	}
	return u.Scheme + "://" + u.Host + "/hooks/***"
}
