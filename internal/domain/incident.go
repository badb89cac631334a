package domain

import (
	"fmt"
	"time"
)

// IncidentStatus represents the lifecycle state of an incident.
type IncidentStatus string

// Incident statuses.
const (
	IncidentStatusNew        IncidentStatus = "New"
	IncidentStatusInProgress IncidentStatus = "In Progress"
	IncidentStatusOnHold     IncidentStatus = "On Hold"
	IncidentStatusResolved   IncidentStatus = "Resolved"
	IncidentStatusClosed     IncidentStatus = "Closed"
)

// IsValid checks if the status is one of the known incident statuses.
func (s IncidentStatus) IsValid() bool {
	switch s {
	case IncidentStatusNew, IncidentStatusInProgress, IncidentStatusOnHold,
		IncidentStatusResolved, IncidentStatusClosed:
		return true
	}
	return false
}

// IsOpen reports whether the incident still needs work.
func (s IncidentStatus) IsOpen() bool {
	return s != IncidentStatusResolved && s != IncidentStatusClosed
}

// RequiresResolution reports whether resolution notes must accompany the status.
func (s IncidentStatus) RequiresResolution() bool {
	return !s.IsOpen()
}

// Priority is the urgency of an incident. Lower value means higher urgency.
type Priority int

// Priorities.
const (
	PriorityCritical Priority = 1
	PriorityHigh     Priority = 2
	PriorityModerate Priority = 3
	PriorityLow      Priority = 4
)

// IsValid checks if the priority is within the known range.
func (p Priority) IsValid() bool {
	return p >= PriorityCritical && p <= PriorityLow
}

// Label returns the human readable priority name.
func (p Priority) Label() string {
	switch p {
	case PriorityCritical:
		return "Critical"
	case PriorityHigh:
		return "High"
	case PriorityModerate:
		return "Moderate"
	case PriorityLow:
		return "Low"
	default:
		return "Unknown"
	}
}

func (p Priority) String() string {
	return fmt.Sprintf("%d - %s", int(p), p.Label())
}

// ResolutionCode classifies how an incident was resolved.
type ResolutionCode string

// Resolution codes.
const (
	ResolutionSolvedPermanently ResolutionCode = "Solved (Permanently)"
	ResolutionSolvedWorkaround  ResolutionCode = "Solved (Work Around)"
	ResolutionNotReproducible   ResolutionCode = "Not Solved (Not Reproducible)"
	ResolutionThirdParty        ResolutionCode = "Third Party Resolved"
)

// IsValid checks if the code is empty or one of the known resolution codes.
func (c ResolutionCode) IsValid() bool {
	switch c {
	case "", ResolutionSolvedPermanently, ResolutionSolvedWorkaround,
		ResolutionNotReproducible, ResolutionThirdParty:
		return true
	}
	return false
}

// ActivityType classifies an activity log entry.
type ActivityType string

// Activity types.
const (
	ActivityTypeSystem     ActivityType = "system"
	ActivityTypeComment    ActivityType = "comment"
	ActivityTypeResolution ActivityType = "resolution"
)

// IncidentActivity is one entry of an incident's audit trail.
type IncidentActivity struct {
	ID        string       `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	User      string       `json:"user"`
	Type      ActivityType `json:"type"`
	Message   string       `json:"message"`
}

// Incident represents a reported service disruption.
type Incident struct {
	ID               string             `json:"id"`
	ShortDescription string             `json:"short_description"`
	Description      string             `json:"description"`
	Caller           string             `json:"caller"`
	AssignmentGroup  string             `json:"assignment_group"`
	Status           IncidentStatus     `json:"status"`
	Priority         Priority           `json:"priority"`
	Updated          time.Time          `json:"updated"`
	ResolutionCode   ResolutionCode     `json:"resolution_code"`
	ResolutionNotes  string             `json:"resolution_notes"`
	ActivityLog      []IncidentActivity `json:"activity_log"`
}

// Clone returns a deep copy of the incident.
func (i *Incident) Clone() *Incident {
	c := *i
	c.ActivityLog = make([]IncidentActivity, len(i.ActivityLog))
	copy(c.ActivityLog, i.ActivityLog)
	return &c
}
