// Package changes manages change requests.
package changes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/pkg/store"
)

// IDPrefix prefixes generated change ids.
const IDPrefix = "CHG"

// Change request errors.
var (
	ErrChangeNotFound           = errors.New("change request not found")
	ErrShortDescriptionRequired = errors.New("short description is required")
	ErrInvalidType              = errors.New("invalid change type")
	ErrInvalidStatus            = errors.New("invalid change status")
)

// Filter narrows a change listing. Empty fields match everything.
type Filter struct {
	Status domain.ChangeStatus
	Type   domain.ChangeType
}

// Service implements change management.
type Service struct {
	store store.Store[domain.ChangeRequest]
	now   func() time.Time
}

// NewService creates a new change service.
func NewService(s store.Store[domain.ChangeRequest]) *Service {
	return &Service{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ChangeInput holds data for raising a change request.
type ChangeInput struct {
	ShortDescription string
	Type             domain.ChangeType
	Status           domain.ChangeStatus
	AssignedTo       string
	PlannedStartDate string
}

// ChangePatch holds changed fields. Nil means unchanged.
type ChangePatch struct {
	ShortDescription *string
	Type             *domain.ChangeType
	Status           *domain.ChangeStatus
	AssignedTo       *string
	PlannedStartDate *string
}

// List returns change requests matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]domain.ChangeRequest, error) {
	if filter.Status != "" && !validStatus(filter.Status) {
		return nil, ErrInvalidStatus
	}
	if filter.Type != "" && !validType(filter.Type) {
		return nil, ErrInvalidType
	}

	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}

	out := make([]domain.ChangeRequest, 0, len(all))
	for _, c := range all {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Type != "" && c.Type != filter.Type {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Get returns a change request by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.ChangeRequest, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChangeNotFound
		}
		return nil, fmt.Errorf("get change: %w", err)
	}
	return &c, nil
}

// Create raises a change request. Type defaults to Normal and status to Pending.
func (s *Service) Create(ctx context.Context, input ChangeInput) (*domain.ChangeRequest, error) {
	now := s.now()
	c := domain.ChangeRequest{
		ID:               store.NewID(IDPrefix),
		ShortDescription: strings.TrimSpace(input.ShortDescription),
		Type:             input.Type,
		Status:           input.Status,
		AssignedTo:       input.AssignedTo,
		PlannedStartDate: input.PlannedStartDate,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if c.Type == "" {
		c.Type = domain.ChangeTypeNormal
	}
	if c.Status == "" {
		c.Status = domain.ChangeStatusPending
	}
	if err := validate(&c); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, c.ID, c); err != nil {
		return nil, fmt.Errorf("create change: %w", err)
	}
	return &c, nil
}

// Update changes fields of a change request.
func (s *Service) Update(ctx context.Context, id string, patch ChangePatch) (*domain.ChangeRequest, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.ShortDescription != nil {
		c.ShortDescription = strings.TrimSpace(*patch.ShortDescription)
	}
	if patch.Type != nil {
		c.Type = *patch.Type
	}
	if patch.Status != nil {
		c.Status = *patch.Status
	}
	if patch.AssignedTo != nil {
		c.AssignedTo = *patch.AssignedTo
	}
	if patch.PlannedStartDate != nil {
		c.PlannedStartDate = *patch.PlannedStartDate
	}
	c.UpdatedAt = s.now()

	if err := validate(c); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, id, *c); err != nil {
		return nil, fmt.Errorf("update change: %w", err)
	}
	return c, nil
}

// Delete removes a change request.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrChangeNotFound
		}
		return fmt.Errorf("delete change: %w", err)
	}
	return nil
}

// Import stores a change request as given.
func (s *Service) Import(ctx context.Context, c domain.ChangeRequest) error {
	if err := s.store.Create(ctx, c.ID, c); err != nil {
		return fmt.Errorf("import change %s: %w", c.ID, err)
	}
	return nil
}

func validate(c *domain.ChangeRequest) error {
	if c.ShortDescription == "" {
		return ErrShortDescriptionRequired
	}
	if !validType(c.Type) {
		return ErrInvalidType
	}
	if !validStatus(c.Status) {
		return ErrInvalidStatus
	}
	return nil
}

func validType(t domain.ChangeType) bool {
	switch t {
	case domain.ChangeTypeStandard, domain.ChangeTypeNormal, domain.ChangeTypeEmergency:
		return true
	}
	return false
}

func validStatus(s domain.ChangeStatus) bool {
	switch s {
	case domain.ChangeStatusPending, domain.ChangeStatusApproved, domain.ChangeStatusInProgress,
		domain.ChangeStatusCompleted, domain.ChangeStatusRejected:
		return true
	}
	return false
}
