package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/google/uuid"
)

// UserDirectory resolves a caller name to a user record.
type UserDirectory interface {
	FindUserByName(ctx context.Context, name string) (*domain.User, error)
}

// NotifierConfig controls who is told about incident saves.
type NotifierConfig struct {
	BaseURL string
	// GroupWebhooks maps resolver group names to Mattermost incoming webhooks.
	GroupWebhooks map[string]string
	EmailCallers  bool
	MaxAttempts   int
}

type recipient struct {
	channel ChannelType
	to      string
}

// audience says which parties a save concerns.
type audience struct {
	group  bool
	caller bool
}

// Notifier turns incident saves into queued deliveries. It implements
// incidents.Notifier.
type Notifier struct {
	config    NotifierConfig
	queue     *Queue
	directory UserDirectory

	now   func() time.Time
	newID func() string
}

// NewNotifier creates a new Notifier. directory may be nil when callers are
// not emailed.
func NewNotifier(config NotifierConfig, queue *Queue, directory UserDirectory) *Notifier {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultWorkerConfig().MaxAttempts
	}
	return &Notifier{
		config:    config,
		queue:     queue,
		directory: directory,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// OnIncidentCreated tells the assignment group about a new incident. The
// caller is only mailed when someone else filed it with a comment.
func (n *Notifier) OnIncidentCreated(ctx context.Context, incident *domain.Incident) error {
	payload := NewCreatedPayload(incident, n.incidentURL(incident.ID), n.now())
	return n.enqueue(ctx, incident, payload, audience{group: true, caller: payload.Comment != ""})
}

// OnIncidentUpdated tells the group about assignment and priority changes and
// the caller about status changes and comments. Saves that produced no
// activity are silent.
func (n *Notifier) OnIncidentUpdated(ctx context.Context, previous, current *domain.Incident, entries []domain.IncidentActivity) error {
	if len(entries) == 0 || previous == nil {
		return nil
	}
	payload := NewUpdatedPayload(previous, current, entries, n.incidentURL(current.ID), n.now())
	return n.enqueue(ctx, current, payload, audience{
		group:  previous.AssignmentGroup != current.AssignmentGroup || previous.Priority != current.Priority,
		caller: previous.Status != current.Status || payload.Comment != "",
	})
}

func (n *Notifier) enqueue(ctx context.Context, incident *domain.Incident, payload NotificationPayload, to audience) error {
	recipients := n.recipients(ctx, incident, payload.Actor, to)
	if len(recipients) == 0 {
		slog.Debug("no recipients for incident", "incident_id", incident.ID)
		return nil
	}

	var errs []error
	for _, r := range recipients {
		item := &QueueItem{
			ID:          n.newID(),
			Channel:     r.channel,
			To:          r.to,
			Payload:     payload,
			MaxAttempts: n.config.MaxAttempts,
			CreatedAt:   n.now(),
		}
		if err := n.queue.Enqueue(item); err != nil {
			errs = append(errs, fmt.Errorf("enqueue %s notification: %w", r.channel, err))
		}
	}

	slog.Info("incident notifications queued",
		"incident_id", incident.ID,
		"message_type", payload.MessageType,
		"recipients", len(recipients)-len(errs),
	)
	return errors.Join(errs...)
}

// recipients resolves the audience to the group webhook and the caller's
// mailbox. Callers are not emailed about their own actions.
func (n *Notifier) recipients(ctx context.Context, incident *domain.Incident, actor string, to audience) []recipient {
	var out []recipient

	webhook := n.config.GroupWebhooks[incident.AssignmentGroup]
	if to.group && incident.AssignmentGroup != "" && webhook != "" {
		out = append(out, recipient{channel: ChannelMattermost, to: webhook})
	}

	if to.caller && n.config.EmailCallers && n.directory != nil && incident.Caller != actor {
		user, err := n.directory.FindUserByName(ctx, incident.Caller)
		switch {
		case err != nil:
			slog.Debug("caller not in directory", "caller", incident.Caller, "error", err)
		case strings.TrimSpace(user.Email) != "":
			out = append(out, recipient{channel: ChannelEmail, to: user.Email})
		}
	}

	return out
}

func (n *Notifier) incidentURL(id string) string {
	if n.config.BaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/incidents/%s", strings.TrimRight(n.config.BaseURL, "/"), id)
}
