package incidents

import (
	"fmt"
	"sort"
	"time"

	"github.com/bissquit/onestop-itsm/internal/domain"
)

const unassignedLabel = "Unassigned"

// ActivityInput is everything needed to derive audit entries for one save.
type ActivityInput struct {
	// Previous is nil when the incident is being created.
	Previous *domain.Incident
	Next     *domain.Incident
	Actor    string
	Now      time.Time
	Comment  string
}

// NewActivityEntries derives the audit entries produced by a save. Every
// entry carries the same timestamp and actor. Entries are returned in the
// order the rules fire: creation or status, assignment, priority, comment.
func NewActivityEntries(in ActivityInput, newID func() string) []domain.IncidentActivity {
	entries := make([]domain.IncidentActivity, 0, 4)
	add := func(t domain.ActivityType, msg string) {
		entries = append(entries, domain.IncidentActivity{
			ID:        newID(),
			Timestamp: in.Now,
			User:      in.Actor,
			Type:      t,
			Message:   msg,
		})
	}

	prev, next := in.Previous, in.Next
	if prev == nil {
		add(domain.ActivityTypeSystem, "Incident created.")
	} else {
		if prev.Status != next.Status {
			t := domain.ActivityTypeSystem
			if next.Status == domain.IncidentStatusResolved {
				t = domain.ActivityTypeResolution
			}
			add(t, fmt.Sprintf("Status changed from %s to %s", prev.Status, next.Status))
		}
		if prev.AssignmentGroup != next.AssignmentGroup {
			group := next.AssignmentGroup
			if group == "" {
				group = unassignedLabel
			}
			add(domain.ActivityTypeSystem, fmt.Sprintf("Assignment Group changed to %s", group))
		}
		if prev.Priority != next.Priority {
			add(domain.ActivityTypeSystem, "Priority changed")
		}
	}

	if in.Comment != "" {
		add(domain.ActivityTypeComment, in.Comment)
	}

	return entries
}

// MergeActivity appends entries to an existing log and returns a new slice
// ordered newest first. Entries with equal timestamps keep append order.
func MergeActivity(log, entries []domain.IncidentActivity) []domain.IncidentActivity {
	merged := make([]domain.IncidentActivity, 0, len(log)+len(entries))
	merged = append(merged, log...)
	merged = append(merged, entries...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})
	return merged
}
