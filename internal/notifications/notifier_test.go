package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDirectory struct {
	users map[string]*domain.User
}

func (m *mockDirectory) FindUserByName(_ context.Context, name string) (*domain.User, error) {
	if u, ok := m.users[name]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

func newTestNotifier(queue *Queue) *Notifier {
	dir := &mockDirectory{users: map[string]*domain.User{
		"Jane Smith": {Name: "Jane Smith", Email: "jane@example.com"},
		"No Mail":    {Name: "No Mail"},
	}}
	n := NewNotifier(NotifierConfig{
		BaseURL:       "https://itsm.example.com/",
		GroupWebhooks: map[string]string{"Hardware Support": "https://hooks.example.com/hw"},
		EmailCallers:  true,
	}, queue, dir)
	n.now = func() time.Time { return renderTime }
	return n
}

func drain(q *Queue) []*QueueItem {
	var out []*QueueItem
	for q.Len() > 0 {
		out = append(out, <-q.Items())
	}
	return out
}

func TestNotifier_OnIncidentCreated(t *testing.T) {
	// Arrange
	queue := NewQueue(8)
	n := newTestNotifier(queue)
	inc := printerJam()
	inc.ActivityLog = []domain.IncidentActivity{
		{User: "Alice Agent", Type: domain.ActivityTypeSystem, Message: "Incident created."},
		{User: "Alice Agent", Type: domain.ActivityTypeComment, Message: "Reported by phone."},
	}

	// Act
	err := n.OnIncidentCreated(context.Background(), inc)

	// Assert
	require.NoError(t, err)
	items := drain(queue)
	require.Len(t, items, 2)
	assert.Equal(t, ChannelMattermost, items[0].Channel)
	assert.Equal(t, "https://hooks.example.com/hw", items[0].To)
	assert.Equal(t, ChannelEmail, items[1].Channel)
	assert.Equal(t, "jane@example.com", items[1].To)
	assert.Equal(t, 3, items[1].MaxAttempts)
	assert.Equal(t, "https://itsm.example.com/incidents/INC001002", items[1].Payload.IncidentURL)
	assert.Equal(t, MessageTypeCreated, items[1].Payload.MessageType)
	assert.Equal(t, "Reported by phone.", items[1].Payload.Comment)
}

func TestNotifier_OnIncidentCreated_WithoutCommentSkipsCaller(t *testing.T) {
	queue := NewQueue(8)
	n := newTestNotifier(queue)

	require.NoError(t, n.OnIncidentCreated(context.Background(), printerJam()))

	items := drain(queue)
	require.Len(t, items, 1)
	assert.Equal(t, ChannelMattermost, items[0].Channel)
}

func TestNotifier_Recipients(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*domain.Incident)
		actor    string
		wantSent []ChannelType
	}{
		{"group and caller", func(*domain.Incident) {}, "Alice Agent", []ChannelType{ChannelMattermost, ChannelEmail}},
		{"caller acting on own incident", func(*domain.Incident) {}, "Jane Smith", []ChannelType{ChannelMattermost}},
		{"group without webhook", func(i *domain.Incident) { i.AssignmentGroup = "Service Desk" }, "Alice Agent", []ChannelType{ChannelEmail}},
		{"unassigned", func(i *domain.Incident) { i.AssignmentGroup = "" }, "Alice Agent", []ChannelType{ChannelEmail}},
		{"caller unknown", func(i *domain.Incident) { i.Caller = "Walk In" }, "Alice Agent", []ChannelType{ChannelMattermost}},
		{"caller without email", func(i *domain.Incident) { i.Caller = "No Mail" }, "Alice Agent", []ChannelType{ChannelMattermost}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newTestNotifier(NewQueue(8))
			inc := printerJam()
			tt.mutate(inc)

			got := make([]ChannelType, 0)
			for _, r := range n.recipients(context.Background(), inc, tt.actor, audience{group: true, caller: true}) {
				got = append(got, r.channel)
			}
			assert.Equal(t, tt.wantSent, got)
		})
	}
}

func TestNotifier_OnIncidentUpdated(t *testing.T) {
	agent := func(msg string) []domain.IncidentActivity {
		return []domain.IncidentActivity{{User: "Alice Agent", Type: domain.ActivityTypeSystem, Message: msg}}
	}

	tests := []struct {
		name     string
		before   func(*domain.Incident)
		mutate   func(*domain.Incident)
		entries  []domain.IncidentActivity
		wantSent []ChannelType
	}{
		{
			name:     "no activity",
			mutate:   func(i *domain.Incident) { i.Description = "more detail" },
			wantSent: []ChannelType{},
		},
		{
			name:     "priority change tells group",
			mutate:   func(i *domain.Incident) { i.Priority = domain.PriorityCritical },
			entries:  agent("Priority changed"),
			wantSent: []ChannelType{ChannelMattermost},
		},
		{
			name:     "reassignment tells new group",
			before:   func(i *domain.Incident) { i.AssignmentGroup = "Service Desk" },
			mutate:   func(i *domain.Incident) { i.AssignmentGroup = "Hardware Support" },
			entries:  agent("Assignment Group changed to Hardware Support"),
			wantSent: []ChannelType{ChannelMattermost},
		},
		{
			name:     "status change tells caller",
			mutate:   func(i *domain.Incident) { i.Status = domain.IncidentStatusOnHold },
			entries:  agent("Status changed from In Progress to On Hold"),
			wantSent: []ChannelType{ChannelEmail},
		},
		{
			name:   "comment tells caller",
			mutate: func(*domain.Incident) {},
			entries: []domain.IncidentActivity{
				{User: "Alice Agent", Type: domain.ActivityTypeComment, Message: "Parts ordered."},
			},
			wantSent: []ChannelType{ChannelEmail},
		},
		{
			name:   "caller comment is not mailed back",
			mutate: func(*domain.Incident) {},
			entries: []domain.IncidentActivity{
				{User: "Jane Smith", Type: domain.ActivityTypeComment, Message: "Any news?"},
			},
			wantSent: []ChannelType{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := NewQueue(8)
			n := newTestNotifier(queue)
			prev := printerJam()
			if tt.before != nil {
				tt.before(prev)
			}
			next := printerJam()
			tt.mutate(next)

			require.NoError(t, n.OnIncidentUpdated(context.Background(), prev, next, tt.entries))

			got := make([]ChannelType, 0)
			for _, item := range drain(queue) {
				got = append(got, item.Channel)
			}
			assert.Equal(t, tt.wantSent, got)
		})
	}
}

func TestNotifier_ResolvedPayload(t *testing.T) {
	queue := NewQueue(8)
	n := newTestNotifier(queue)
	next := printerJam()
	next.Status = domain.IncidentStatusClosed
	next.ResolutionNotes = "Replaced the roller."

	entries := []domain.IncidentActivity{{User: "Alice Agent", Type: domain.ActivityTypeSystem, Message: "Status changed from In Progress to Closed"}}
	require.NoError(t, n.OnIncidentUpdated(context.Background(), printerJam(), next, entries))

	items := drain(queue)
	require.Len(t, items, 1)
	assert.Equal(t, MessageTypeResolved, items[0].Payload.MessageType)
	assert.Equal(t, []string{"Status changed from In Progress to Closed"}, items[0].Payload.Changes)
}

func TestNotifier_QueueFull(t *testing.T) {
	queue := NewQueue(1)
	n := newTestNotifier(queue)
	next := printerJam()
	next.Status = domain.IncidentStatusOnHold
	next.Priority = domain.PriorityHigh
	entries := []domain.IncidentActivity{
		{User: "Alice Agent", Type: domain.ActivityTypeSystem, Message: "Status changed from In Progress to On Hold"},
		{User: "Alice Agent", Type: domain.ActivityTypeSystem, Message: "Priority changed"},
	}

	err := n.OnIncidentUpdated(context.Background(), printerJam(), next, entries)

	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1, queue.Len())
}

func TestNotifier_NoBaseURL(t *testing.T) {
	n := NewNotifier(NotifierConfig{}, NewQueue(1), nil)

	assert.Empty(t, n.incidentURL("INC001001"))
	assert.Empty(t, n.recipients(context.Background(), printerJam(), "Alice Agent", audience{group: true, caller: true}))
	assert.NoError(t, n.OnIncidentCreated(context.Background(), printerJam()))
}
