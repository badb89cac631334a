// Package assets tracks inventoried hardware and software.
package assets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/pkg/store"
)

// IDPrefix prefixes generated asset ids.
const IDPrefix = "ASSET"

// Asset errors.
var (
	ErrAssetNotFound = errors.New("asset not found")
	ErrNameRequired  = errors.New("name is required")
	ErrInvalidStatus = errors.New("invalid asset status")
)

// Service implements asset inventory.
type Service struct {
	store store.Store[domain.Asset]
	now   func() time.Time
}

// NewService creates a new asset service.
func NewService(s store.Store[domain.Asset]) *Service {
	return &Service{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// AssetInput holds data for creating an asset.
type AssetInput struct {
	Name         string
	Category     string
	AssignedTo   string
	Status       domain.AssetStatus
	PurchaseDate string
}

// AssetPatch holds changed asset fields. Nil means unchanged.
type AssetPatch struct {
	Name         *string
	Category     *string
	AssignedTo   *string
	Status       *domain.AssetStatus
	PurchaseDate *string
}

// List returns the assets the viewer may see. Customers see what is
// assigned to them.
func (s *Service) List(ctx context.Context, viewer domain.Viewer) ([]domain.Asset, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	if viewer.Role.GrantFor(domain.PermViewAssets) != domain.GrantOwn {
		return all, nil
	}

	own := make([]domain.Asset, 0)
	for _, a := range all {
		if a.AssignedTo == viewer.Name {
			own = append(own, a)
		}
	}
	return own, nil
}

// Get returns an asset the viewer may see.
func (s *Service) Get(ctx context.Context, viewer domain.Viewer, id string) (*domain.Asset, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, fmt.Errorf("get asset: %w", err)
	}
	if viewer.Role.GrantFor(domain.PermViewAssets) == domain.GrantOwn && a.AssignedTo != viewer.Name {
		return nil, ErrAssetNotFound
	}
	return &a, nil
}

// Create adds an asset. Status defaults to In Stock.
func (s *Service) Create(ctx context.Context, input AssetInput) (*domain.Asset, error) {
	now := s.now()
	a := domain.Asset{
		ID:           store.NewID(IDPrefix),
		Name:         strings.TrimSpace(input.Name),
		Category:     input.Category,
		AssignedTo:   input.AssignedTo,
		Status:       input.Status,
		PurchaseDate: input.PurchaseDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if a.Status == "" {
		a.Status = domain.AssetStatusInStock
	}
	if err := validate(&a); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, a.ID, a); err != nil {
		return nil, fmt.Errorf("create asset: %w", err)
	}
	return &a, nil
}

// Update changes asset fields.
func (s *Service) Update(ctx context.Context, id string, patch AssetPatch) (*domain.Asset, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, fmt.Errorf("get asset: %w", err)
	}

	if patch.Name != nil {
		a.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Category != nil {
		a.Category = *patch.Category
	}
	if patch.AssignedTo != nil {
		a.AssignedTo = *patch.AssignedTo
	}
	if patch.Status != nil {
		a.Status = *patch.Status
	}
	if patch.PurchaseDate != nil {
		a.PurchaseDate = *patch.PurchaseDate
	}
	a.UpdatedAt = s.now()

	if err := validate(&a); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, id, a); err != nil {
		return nil, fmt.Errorf("update asset: %w", err)
	}
	return &a, nil
}

// Delete removes an asset.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAssetNotFound
		}
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}

// Import stores an asset as given.
func (s *Service) Import(ctx context.Context, a domain.Asset) error {
	if err := s.store.Create(ctx, a.ID, a); err != nil {
		return fmt.Errorf("import asset %s: %w", a.ID, err)
	}
	return nil
}

func validate(a *domain.Asset) error {
	if a.Name == "" {
		return ErrNameRequired
	}
	switch a.Status {
	case domain.AssetStatusInUse, domain.AssetStatusInStock, domain.AssetStatusRetired:
		return nil
	}
	return ErrInvalidStatus
}
