// Package incidents implements incident tracking with an append-only activity trail.
package incidents

import (
	"context"
	"fmt"
	"time"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/pkg/ctxlog"
	"github.com/google/uuid"
)

// Notifier is informed about incident saves after they are stored.
type Notifier interface {
	OnIncidentCreated(ctx context.Context, incident *domain.Incident) error
	OnIncidentUpdated(ctx context.Context, previous, current *domain.Incident, entries []domain.IncidentActivity) error
}

// Service implements incident business logic.
type Service struct {
	repo     Repository
	notifier Notifier

	now   func() time.Time
	newID func() string
}

// NewService creates a new incident service. notifier may be nil.
func NewService(repo Repository, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// CreateIncidentInput holds data for filing an incident.
type CreateIncidentInput struct {
	ShortDescription string
	Description      string
	Caller           string
	AssignmentGroup  string
	Status           domain.IncidentStatus
	Priority         domain.Priority
	ResolutionCode   domain.ResolutionCode
	ResolutionNotes  string
}

// IncidentPatch holds the fields an update may change. Nil means unchanged.
type IncidentPatch struct {
	ShortDescription *string
	Description      *string
	Caller           *string
	AssignmentGroup  *string
	Status           *domain.IncidentStatus
	Priority         *domain.Priority
	ResolutionCode   *domain.ResolutionCode
	ResolutionNotes  *string
}

// Apply returns a copy of the incident with the patch merged in.
func (p IncidentPatch) Apply(inc *domain.Incident) *domain.Incident {
	next := inc.Clone()
	if p.ShortDescription != nil {
		next.ShortDescription = *p.ShortDescription
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Caller != nil {
		next.Caller = *p.Caller
	}
	if p.AssignmentGroup != nil {
		next.AssignmentGroup = *p.AssignmentGroup
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.Priority != nil {
		next.Priority = *p.Priority
	}
	if p.ResolutionCode != nil {
		next.ResolutionCode = *p.ResolutionCode
	}
	if p.ResolutionNotes != nil {
		next.ResolutionNotes = *p.ResolutionNotes
	}
	return next
}

// Create files a new incident on behalf of the actor.
func (s *Service) Create(ctx context.Context, input CreateIncidentInput, actor domain.Viewer, comment string) (*domain.Incident, error) {
	inc, err := s.create(ctx, input, actor, comment)
	recordSave("create", err)
	return inc, err
}

func (s *Service) create(ctx context.Context, input CreateIncidentInput, actor domain.Viewer, comment string) (*domain.Incident, error) {
	if !actor.Role.Can(domain.PermCreateIncidents) {
		return nil, ErrForbidden
	}

	inc := &domain.Incident{
		ShortDescription: input.ShortDescription,
		Description:      input.Description,
		Caller:           input.Caller,
		AssignmentGroup:  input.AssignmentGroup,
		Status:           input.Status,
		Priority:         input.Priority,
		ResolutionCode:   input.ResolutionCode,
		ResolutionNotes:  input.ResolutionNotes,
	}

	if inc.Status == "" {
		inc.Status = domain.IncidentStatusNew
	}
	if inc.Priority == 0 {
		inc.Priority = domain.PriorityLow
	}

	if actor.Role == domain.RoleCustomer {
		// Customers only file for themselves and cannot route or progress the ticket.
		if inc.AssignmentGroup != "" || inc.Status != domain.IncidentStatusNew {
			return nil, ErrForbiddenField
		}
		inc.Caller = actor.Name
	}
	if inc.Caller == "" {
		inc.Caller = actor.Name
	}

	if err := validateIncident(inc); err != nil {
		return nil, err
	}

	id, err := s.repo.NextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("reserve incident id: %w", err)
	}
	inc.ID = id

	now := s.now()
	entries := NewActivityEntries(ActivityInput{
		Next:    inc,
		Actor:   actor.Name,
		Now:     now,
		Comment: comment,
	}, s.newID)
	inc.ActivityLog = MergeActivity(nil, entries)
	inc.Updated = now

	if err := s.repo.Create(ctx, inc); err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}
	recordActivity(entries)

	if s.notifier != nil {
		if err := s.notifier.OnIncidentCreated(ctx, inc.Clone()); err != nil {
			ctxlog.FromContext(ctx).Error("failed to notify about incident", "incident_id", inc.ID, "error", err)
		}
	}

	return inc, nil
}

// Update merges the patch into the incident, appending activity entries for
// status, assignment and priority changes plus the optional comment.
// Incidents the actor cannot see are reported as not found.
func (s *Service) Update(ctx context.Context, id string, patch IncidentPatch, actor domain.Viewer, comment string) (*domain.Incident, error) {
	inc, err := s.update(ctx, id, patch, actor, comment)
	recordSave("update", err)
	return inc, err
}

func (s *Service) update(ctx context.Context, id string, patch IncidentPatch, actor domain.Viewer, comment string) (*domain.Incident, error) {
	var (
		previous *domain.Incident
		entries  []domain.IncidentActivity
	)

	updated, err := s.repo.Update(ctx, id, func(current *domain.Incident) (*domain.Incident, error) {
		if !CanView(actor, current) {
			return nil, ErrIncidentNotFound
		}

		next := patch.Apply(current)
		if err := authorizeChanges(actor, current, next); err != nil {
			return nil, err
		}
		if err := validateIncident(next); err != nil {
			return nil, err
		}

		now := s.now()
		entries = NewActivityEntries(ActivityInput{
			Previous: current,
			Next:     next,
			Actor:    actor.Name,
			Now:      now,
			Comment:  comment,
		}, s.newID)
		next.ActivityLog = MergeActivity(current.ActivityLog, entries)
		next.Updated = now

		previous = current
		return next, nil
	})
	if err != nil {
		return nil, fmt.Errorf("update incident %s: %w", id, err)
	}
	recordActivity(entries)

	if s.notifier != nil {
		if err := s.notifier.OnIncidentUpdated(ctx, previous, updated.Clone(), entries); err != nil {
			ctxlog.FromContext(ctx).Error("failed to notify about incident update", "incident_id", id, "error", err)
		}
	}

	return updated, nil
}

// Get returns the incident if the viewer may see it.
func (s *Service) Get(ctx context.Context, viewer domain.Viewer, id string) (*domain.Incident, error) {
	inc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get incident: %w", err)
	}
	if !CanView(viewer, inc) {
		return nil, ErrIncidentNotFound
	}
	return inc, nil
}

// List returns the incidents visible to the viewer that match the filter.
func (s *Service) List(ctx context.Context, viewer domain.Viewer, filter ListFilter) ([]domain.Incident, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, ErrInvalidStatus
	}
	if filter.Priority != 0 && !filter.Priority.IsValid() {
		return nil, ErrInvalidPriority
	}

	all, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	return VisibleTo(viewer, all), nil
}

// Activity returns the incident's activity log, newest first.
func (s *Service) Activity(ctx context.Context, viewer domain.Viewer, id string) ([]domain.IncidentActivity, error) {
	inc, err := s.Get(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	return inc.ActivityLog, nil
}

func validateIncident(inc *domain.Incident) error {
	if inc.ShortDescription == "" {
		return ErrShortDescriptionRequired
	}
	if inc.Caller == "" {
		return ErrCallerRequired
	}
	if !inc.Status.IsValid() {
		return ErrInvalidStatus
	}
	if !inc.Priority.IsValid() {
		return ErrInvalidPriority
	}
	if !inc.ResolutionCode.IsValid() {
		return ErrInvalidResolutionCode
	}
	if inc.Status.RequiresResolution() && inc.ResolutionNotes == "" {
		return ErrResolutionNotesRequired
	}
	return nil
}

// authorizeChanges enforces the field-level rules of the access matrix.
func authorizeChanges(actor domain.Viewer, prev, next *domain.Incident) error {
	role := actor.Role

	if prev.AssignmentGroup != next.AssignmentGroup && !role.Can(domain.PermAssignGroups) {
		return ErrForbiddenField
	}

	if prev.Caller != next.Caller && !role.IsResolver() {
		return ErrForbiddenField
	}

	if prev.Status != next.Status {
		if next.Status.RequiresResolution() {
			switch role.GrantFor(domain.PermCloseIncidents) {
			case domain.GrantFull:
			case domain.GrantOwn:
				if next.Status != domain.IncidentStatusClosed || prev.Caller != actor.Name {
					return ErrForbiddenField
				}
			default:
				return ErrForbiddenField
			}
		} else {
			grant := role.GrantFor(domain.PermEditIncidents)
			if grant != domain.GrantFull && grant != domain.GrantAssigned {
				return ErrForbiddenField
			}
		}
	}

	return nil
}
