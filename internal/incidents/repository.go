package incidents

import (
	"context"

	"github.com/bissquit/onestop-itsm/internal/domain"
)

// ListFilter narrows an incident listing. Zero values match everything.
type ListFilter struct {
	Status          domain.IncidentStatus
	Priority        domain.Priority
	AssignmentGroup string
	Caller          string
	// Query matches the id or short description, case-insensitively.
	Query string
}

// MutateFunc receives a copy of the stored incident and returns its replacement.
type MutateFunc func(current *domain.Incident) (*domain.Incident, error)

// Repository defines the interface for incident storage.
type Repository interface {
	// NextID reserves a fresh incident identifier.
	NextID(ctx context.Context) (string, error)
	// Create stores a new incident ahead of all existing ones.
	Create(ctx context.Context, incident *domain.Incident) error
	GetByID(ctx context.Context, id string) (*domain.Incident, error)
	// List returns incidents newest-created first.
	List(ctx context.Context, filter ListFilter) ([]domain.Incident, error)
	// Update applies fn atomically to the stored incident and replaces it in place.
	Update(ctx context.Context, id string, fn MutateFunc) (*domain.Incident, error)
	Count(ctx context.Context) (int, error)
}
