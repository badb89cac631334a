// Package dashboard aggregates landing page figures per role.
package dashboard

import (
	"context"
	"fmt"

	"github.com/bissquit/onestop-itsm/internal/changes"
	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/incidents"
	"github.com/bissquit/onestop-itsm/internal/slm"
	"golang.org/x/sync/errgroup"
)

const recentLimit = 5

// IncidentLister lists incidents visible to a viewer.
type IncidentLister interface {
	List(ctx context.Context, viewer domain.Viewer, filter incidents.ListFilter) ([]domain.Incident, error)
}

// AssetLister lists assets visible to a viewer.
type AssetLister interface {
	List(ctx context.Context, viewer domain.Viewer) ([]domain.Asset, error)
}

// ChangeLister lists change requests.
type ChangeLister interface {
	List(ctx context.Context, filter changes.Filter) ([]domain.ChangeRequest, error)
}

// SLASummarizer summarizes agreement compliance.
type SLASummarizer interface {
	Summary(ctx context.Context) (slm.Summary, error)
}

// CustomerView is the self-service landing page.
type CustomerView struct {
	MyOpenIncidents int               `json:"my_open_incidents"`
	MyAssets        int               `json:"my_assets"`
	RecentIncidents []domain.Incident `json:"recent_incidents"`
}

// ConsoleView is the service console landing page. Vendors only get the
// incident figures for their groups.
type ConsoleView struct {
	OpenIncidents     int          `json:"open_incidents"`
	CriticalIncidents int          `json:"critical_incidents"`
	PendingChanges    *int         `json:"pending_changes,omitempty"`
	AssetsInUse       *int         `json:"assets_in_use,omitempty"`
	SLASummary        *slm.Summary `json:"sla_summary,omitempty"`
}

// Service builds dashboards.
type Service struct {
	incidents IncidentLister
	assets    AssetLister
	changes   ChangeLister
	slas      SLASummarizer
}

// NewService creates a new dashboard service.
func NewService(incidents IncidentLister, assets AssetLister, changes ChangeLister, slas SLASummarizer) *Service {
	return &Service{
		incidents: incidents,
		assets:    assets,
		changes:   changes,
		slas:      slas,
	}
}

// ForViewer returns the dashboard matching the viewer's role.
func (s *Service) ForViewer(ctx context.Context, viewer domain.Viewer) (interface{}, error) {
	if viewer.Role == domain.RoleCustomer {
		return s.Customer(ctx, viewer)
	}
	return s.Console(ctx, viewer)
}

// Customer builds the self-service dashboard.
func (s *Service) Customer(ctx context.Context, viewer domain.Viewer) (*CustomerView, error) {
	var (
		mine   []domain.Incident
		assets []domain.Asset
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		mine, err = s.incidents.List(gctx, viewer, incidents.ListFilter{Caller: viewer.Name})
		if err != nil {
			return fmt.Errorf("list incidents: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		assets, err = s.assets.List(gctx, viewer)
		if err != nil {
			return fmt.Errorf("list assets: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := &CustomerView{
		MyAssets:        len(assets),
		RecentIncidents: make([]domain.Incident, 0, recentLimit),
	}
	for _, inc := range mine {
		if inc.Status.IsOpen() {
			view.MyOpenIncidents++
		}
	}
	for i := 0; i < len(mine) && i < recentLimit; i++ {
		view.RecentIncidents = append(view.RecentIncidents, mine[i])
	}
	return view, nil
}

// Console builds the service console dashboard.
func (s *Service) Console(ctx context.Context, viewer domain.Viewer) (*ConsoleView, error) {
	var (
		visible []domain.Incident
		view    ConsoleView
	)

	full := viewer.Role.Can(domain.PermViewServiceConsole)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		visible, err = s.incidents.List(gctx, viewer, incidents.ListFilter{})
		if err != nil {
			return fmt.Errorf("list incidents: %w", err)
		}
		return nil
	})
	if full {
		g.Go(func() error {
			pending, err := s.changes.List(gctx, changes.Filter{Status: domain.ChangeStatusPending})
			if err != nil {
				return fmt.Errorf("list changes: %w", err)
			}
			n := len(pending)
			view.PendingChanges = &n
			return nil
		})
		g.Go(func() error {
			assets, err := s.assets.List(gctx, viewer)
			if err != nil {
				return fmt.Errorf("list assets: %w", err)
			}
			n := 0
			for _, a := range assets {
				if a.Status == domain.AssetStatusInUse {
					n++
				}
			}
			view.AssetsInUse = &n
			return nil
		})
		g.Go(func() error {
			summary, err := s.slas.Summary(gctx)
			if err != nil {
				return fmt.Errorf("summarize agreements: %w", err)
			}
			view.SLASummary = &summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, inc := range visible {
		if !inc.Status.IsOpen() {
			continue
		}
		view.OpenIncidents++
		if inc.Priority == domain.PriorityCritical {
			view.CriticalIncidents++
		}
	}
	return &view, nil
}
