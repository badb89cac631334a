package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MailAddress is a sender or recipient as Mailpit reports it.
type MailAddress struct {
	Name    string `json:"Name"`
	Address string `json:"Address"`
}

// Mail is a message captured by Mailpit. Text is only filled by Mailbox.Read.
type Mail struct {
	ID      string        `json:"ID"`
	From    MailAddress   `json:"From"`
	To      []MailAddress `json:"To"`
	Subject string        `json:"Subject"`
	Text    string        `json:"Text"`
}

// Mailbox reads what the application mailed through Mailpit's REST API.
type Mailbox struct {
	baseURL string
	client  *http.Client
}

// NewMailbox creates a client for the Mailpit API at baseURL.
func NewMailbox(baseURL string) *Mailbox {
	return &Mailbox{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// To lists messages addressed to the recipient, newest first.
func (m *Mailbox) To(ctx context.Context, recipient string) ([]Mail, error) {
	var result struct {
		Messages []Mail `json:"messages"`
	}
	err := m.get(ctx, "/api/v1/search?query="+url.QueryEscape("to:"+recipient), &result)
	return result.Messages, err
}

// Read fetches one message including its plain text body.
func (m *Mailbox) Read(ctx context.Context, id string) (*Mail, error) {
	var mail Mail
	if err := m.get(ctx, "/api/v1/message/"+url.PathEscape(id), &mail); err != nil {
		return nil, err
	}
	return &mail, nil
}

// WaitFor polls until a message to recipient has a subject containing
// subjectPart, or ctx ends.
func (m *Mailbox) WaitFor(ctx context.Context, recipient, subjectPart string) (*Mail, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		mails, err := m.To(ctx, recipient)
		if err == nil {
			for i := range mails {
				if strings.Contains(mails[i].Subject, subjectPart) {
					return &mails[i], nil
				}
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("no mail to %s matching %q: %w", recipient, subjectPart, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (m *Mailbox) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("mailpit %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mailpit %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("mailpit %s: decode: %w", path, err)
	}
	return nil
}
