// Package memory provides an in-process implementation of the incident repository.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/incidents"
)

const idPrefix = "INC"

// Repository keeps incidents in process memory for the lifetime of the store.
type Repository struct {
	mu        sync.RWMutex
	incidents []*domain.Incident // newest-created first
	lastID    int
}

// NewRepository creates an empty in-memory incident store.
func NewRepository() *Repository {
	return &Repository{lastID: 1000}
}

// NextID reserves the next sequential incident identifier.
func (r *Repository) NextID(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastID++
	return formatID(r.lastID), nil
}

// Create prepends the incident to the store.
func (r *Repository) Create(_ context.Context, incident *domain.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(incident.ID) >= 0 {
		return fmt.Errorf("incident %s already exists", incident.ID)
	}
	if n, ok := parseID(incident.ID); ok && n > r.lastID {
		r.lastID = n
	}

	r.incidents = append([]*domain.Incident{incident.Clone()}, r.incidents...)
	return nil
}

// GetByID returns a copy of the stored incident.
func (r *Repository) GetByID(_ context.Context, id string) (*domain.Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexOf(id)
	if i < 0 {
		return nil, incidents.ErrIncidentNotFound
	}
	return r.incidents[i].Clone(), nil
}

// List returns copies of the incidents matching the filter.
func (r *Repository) List(_ context.Context, filter incidents.ListFilter) ([]domain.Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Incident, 0, len(r.incidents))
	for _, inc := range r.incidents {
		if matches(inc, filter) {
			result = append(result, *inc.Clone())
		}
	}
	return result, nil
}

// Update applies fn under the store lock and replaces the incident in place.
func (r *Repository) Update(_ context.Context, id string, fn incidents.MutateFunc) (*domain.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return nil, incidents.ErrIncidentNotFound
	}

	next, err := fn(r.incidents[i].Clone())
	if err != nil {
		return nil, err
	}
	next.ID = id

	r.incidents[i] = next.Clone()
	return next, nil
}

// Count returns the number of stored incidents.
func (r *Repository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.incidents), nil
}

func (r *Repository) indexOf(id string) int {
	for i, inc := range r.incidents {
		if inc.ID == id {
			return i
		}
	}
	return -1
}

func matches(inc *domain.Incident, f incidents.ListFilter) bool {
	if f.Status != "" && inc.Status != f.Status {
		return false
	}
	if f.Priority != 0 && inc.Priority != f.Priority {
		return false
	}
	if f.AssignmentGroup != "" && inc.AssignmentGroup != f.AssignmentGroup {
		return false
	}
	if f.Caller != "" && inc.Caller != f.Caller {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(inc.ID), q) &&
			!strings.Contains(strings.ToLower(inc.ShortDescription), q) {
			return false
		}
	}
	return true
}

func formatID(n int) string {
	return fmt.Sprintf("%s%06d", idPrefix, n)
}

func parseID(id string) (int, bool) {
	if !strings.HasPrefix(id, idPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, idPrefix))
	if err != nil {
		return 0, false
	}
	return n, true
}
