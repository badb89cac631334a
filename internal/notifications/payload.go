package notifications

import (
	"time"

	"github.com/bissquit/onestop-itsm/internal/domain"
)

// MessageType defines the type of notification.
type MessageType string

// Message types.
const (
	MessageTypeCreated  MessageType = "created"  // Incident filed
	MessageTypeUpdated  MessageType = "updated"  // Status, assignment, priority or comment
	MessageTypeResolved MessageType = "resolved" // Moved to Resolved or Closed
)

// NotificationPayload contains data for rendering a notification.
type NotificationPayload struct {
	MessageType MessageType  `json:"message_type"`
	Incident    IncidentData `json:"incident"`
	Actor       string       `json:"actor"`
	Changes     []string     `json:"changes,omitempty"`
	Comment     string       `json:"comment,omitempty"`
	IncidentURL string       `json:"incident_url,omitempty"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// IncidentData contains incident information for notification.
type IncidentData struct {
	ID               string    `json:"id"`
	ShortDescription string    `json:"short_description"`
	Caller           string    `json:"caller"`
	AssignmentGroup  string    `json:"assignment_group"`
	Status           string    `json:"status"`
	Priority         string    `json:"priority"`
	ResolutionCode   string    `json:"resolution_code,omitempty"`
	ResolutionNotes  string    `json:"resolution_notes,omitempty"`
	Updated          time.Time `json:"updated"`

	Level domain.Priority `json:"priority_level"`
}

func newIncidentData(inc *domain.Incident) IncidentData {
	return IncidentData{
		ID:               inc.ID,
		ShortDescription: inc.ShortDescription,
		Caller:           inc.Caller,
		AssignmentGroup:  inc.AssignmentGroup,
		Status:           string(inc.Status),
		Priority:         inc.Priority.String(),
		ResolutionCode:   string(inc.ResolutionCode),
		ResolutionNotes:  inc.ResolutionNotes,
		Updated:          inc.Updated,
		Level:            inc.Priority,
	}
}

// NewCreatedPayload creates a payload for a newly filed incident.
func NewCreatedPayload(inc *domain.Incident, incidentURL string, now time.Time) NotificationPayload {
	p := NotificationPayload{
		MessageType: MessageTypeCreated,
		Incident:    newIncidentData(inc),
		IncidentURL: incidentURL,
		GeneratedAt: now,
	}
	for _, e := range inc.ActivityLog {
		if e.Type == domain.ActivityTypeComment {
			p.Comment = e.Message
		}
		p.Actor = e.User
	}
	return p
}

// NewUpdatedPayload creates a payload from the activity entries produced by a
// save. Resolving or closing the incident yields a resolved payload.
func NewUpdatedPayload(previous, current *domain.Incident, entries []domain.IncidentActivity, incidentURL string, now time.Time) NotificationPayload {
	p := NotificationPayload{
		MessageType: MessageTypeUpdated,
		Incident:    newIncidentData(current),
		IncidentURL: incidentURL,
		GeneratedAt: now,
	}
	if previous != nil && previous.Status.IsOpen() && !current.Status.IsOpen() {
		p.MessageType = MessageTypeResolved
	}
	for _, e := range entries {
		p.Actor = e.User
		if e.Type == domain.ActivityTypeComment {
			p.Comment = e.Message
			continue
		}
		p.Changes = append(p.Changes, e.Message)
	}
	return p
}
