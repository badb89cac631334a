package notifications

import (
	"testing"
	"time"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var renderTime = time.Date(2024, 5, 20, 9, 30, 0, 0, time.UTC)

func printerJam() *domain.Incident {
	return &domain.Incident{
		ID:               "INC001002",
		ShortDescription: "Printer jam on 3rd floor",
		Caller:           "Jane Smith",
		AssignmentGroup:  "Hardware Support",
		Status:           domain.IncidentStatusInProgress,
		Priority:         domain.PriorityModerate,
		Updated:          renderTime,
	}
}

func TestNewRenderer(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	assert.Len(t, r.templates, len(channelTypes)*len(messageTypes))
}

func TestRenderer_Created(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	inc := printerJam()
	inc.Status = domain.IncidentStatusNew
	inc.ActivityLog = []domain.IncidentActivity{
		{Timestamp: renderTime, User: "Alice Agent", Type: domain.ActivityTypeSystem, Message: "Incident created."},
		{Timestamp: renderTime, User: "Alice Agent", Type: domain.ActivityTypeComment, Message: "Paper tray 2 is stuck."},
	}
	payload := NewCreatedPayload(inc, "https://itsm.example.com/incidents/INC001002", renderTime)

	subject, body, err := r.Render(ChannelEmail, payload)
	require.NoError(t, err)

	assert.Equal(t, "[New Incident] INC001002: Printer jam on 3rd floor", subject)
	assert.Contains(t, body, "Caller: Jane Smith")
	assert.Contains(t, body, "Priority: 3 - Moderate")
	assert.Contains(t, body, "Assignment Group: Hardware Support")
	assert.Contains(t, body, "Filed by: Alice Agent")
	assert.Contains(t, body, "May 20, 2024 09:30 UTC")
	assert.Contains(t, body, "Paper tray 2 is stuck.")
	assert.Contains(t, body, "View incident: https://itsm.example.com/incidents/INC001002")

	_, body, err = r.Render(ChannelMattermost, payload)
	require.NoError(t, err)
	assert.Contains(t, body, "🟡 **New incident [INC001002](https://itsm.example.com/incidents/INC001002)**")
	assert.Contains(t, body, "> Paper tray 2 is stuck.")
}

func TestRenderer_Updated(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	prev := printerJam()
	prev.Status = domain.IncidentStatusNew
	entries := []domain.IncidentActivity{
		{User: "Alice Agent", Type: domain.ActivityTypeSystem, Message: "Status changed from New to In Progress"},
		{User: "Alice Agent", Type: domain.ActivityTypeComment, Message: "Technician dispatched."},
	}
	payload := NewUpdatedPayload(prev, printerJam(), entries, "", renderTime)
	require.Equal(t, MessageTypeUpdated, payload.MessageType)

	subject, body, err := r.Render(ChannelEmail, payload)
	require.NoError(t, err)

	assert.Equal(t, "[Updated] INC001002: Printer jam on 3rd floor", subject)
	assert.Contains(t, body, "updated by Alice Agent")
	assert.Contains(t, body, "- Status changed from New to In Progress")
	assert.Contains(t, body, "Technician dispatched.")
	assert.NotContains(t, body, "View incident")

	_, body, err = r.Render(ChannelMattermost, payload)
	require.NoError(t, err)
	assert.Contains(t, body, "🔧 **[INC001002]()** updated by Alice Agent")
}

func TestRenderer_Resolved(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	next := printerJam()
	next.Status = domain.IncidentStatusResolved
	next.ResolutionCode = domain.ResolutionSolvedPermanently
	next.ResolutionNotes = "Replaced the roller."
	entries := []domain.IncidentActivity{
		{User: "Alice Agent", Type: domain.ActivityTypeResolution, Message: "Status changed from In Progress to Resolved"},
	}
	payload := NewUpdatedPayload(printerJam(), next, entries, "", renderTime)
	require.Equal(t, MessageTypeResolved, payload.MessageType)

	subject, body, err := r.Render(ChannelEmail, payload)
	require.NoError(t, err)

	assert.Equal(t, "[Resolved] INC001002: Printer jam on 3rd floor", subject)
	assert.Contains(t, body, "is now Resolved")
	assert.Contains(t, body, "Resolution: Solved (Permanently)")
	assert.Contains(t, body, "Notes: Replaced the roller.")

	_, body, err = r.Render(ChannelMattermost, payload)
	require.NoError(t, err)
	assert.Contains(t, body, "✅ **[INC001002]()** RESOLVED by Alice Agent")
}

func TestRenderer_UnknownTemplate(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	_, _, err = r.Render("telegram", NotificationPayload{MessageType: MessageTypeCreated})
	assert.ErrorContains(t, err, "template not found")
}

func TestEmojiHelpers(t *testing.T) {
	assert.Equal(t, "🔴", priorityEmoji(domain.PriorityCritical.String()))
	assert.Equal(t, "⚪", priorityEmoji(domain.PriorityLow.String()))
	assert.Equal(t, "⏸️", statusEmoji("On Hold"))
	assert.Equal(t, "📋", statusEmoji("Unknown"))
	assert.Equal(t, "", formatTime(time.Time{}))
}
