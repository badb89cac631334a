// Package seed loads the demo fixture into the configured stores.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/incidents"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// DemoPassword is the password of every seeded user.
const DemoPassword = "password"

//go:embed seed.yaml
var fixtureYAML []byte

// Fixture is the decoded demo data set.
type Fixture struct {
	Groups    []Group    `yaml:"groups"`
	Users     []User     `yaml:"users"`
	Incidents []Incident `yaml:"incidents"`
	Assets    []Asset    `yaml:"assets"`
	Changes   []Change   `yaml:"changes"`
	SLAs      []SLA      `yaml:"slas"`
}

// Group is a fixture resolver group.
type Group struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Lead        string `yaml:"lead"`
}

// User is a fixture user.
type User struct {
	ID     string   `yaml:"id"`
	Name   string   `yaml:"name"`
	Email  string   `yaml:"email"`
	Role   string   `yaml:"role"`
	Groups []string `yaml:"groups"`
}

// Activity is a fixture activity log entry.
type Activity struct {
	ID        string    `yaml:"id"`
	Timestamp time.Time `yaml:"timestamp"`
	User      string    `yaml:"user"`
	Type      string    `yaml:"type"`
	Message   string    `yaml:"message"`
}

// Incident is a fixture incident.
type Incident struct {
	ID               string     `yaml:"id"`
	ShortDescription string     `yaml:"short_description"`
	Description      string     `yaml:"description"`
	Caller           string     `yaml:"caller"`
	AssignmentGroup  string     `yaml:"assignment_group"`
	Status           string     `yaml:"status"`
	Priority         int        `yaml:"priority"`
	Updated          time.Time  `yaml:"updated"`
	ResolutionCode   string     `yaml:"resolution_code"`
	ResolutionNotes  string     `yaml:"resolution_notes"`
	Activity         []Activity `yaml:"activity"`
}

// Asset is a fixture asset.
type Asset struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Category     string `yaml:"category"`
	AssignedTo   string `yaml:"assigned_to"`
	Status       string `yaml:"status"`
	PurchaseDate string `yaml:"purchase_date"`
}

// Change is a fixture change request.
type Change struct {
	ID               string `yaml:"id"`
	ShortDescription string `yaml:"short_description"`
	Type             string `yaml:"type"`
	Status           string `yaml:"status"`
	AssignedTo       string `yaml:"assigned_to"`
	PlannedStartDate string `yaml:"planned_start_date"`
}

// SLA is a fixture agreement.
type SLA struct {
	ID        string  `yaml:"id"`
	Name      string  `yaml:"name"`
	Type      string  `yaml:"type"`
	Duration  string  `yaml:"duration"`
	Condition string  `yaml:"condition"`
	Target    float64 `yaml:"target"`
	Actual    float64 `yaml:"actual"`
	Status    string  `yaml:"status"`
}

// Default decodes and validates the embedded fixture.
func Default() (*Fixture, error) {
	return Parse(fixtureYAML)
}

// Parse decodes and validates a fixture document.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}
	return &f, nil
}

func (f *Fixture) validate() error {
	var errs []error
	seen := make(map[string]bool)
	unique := func(kind, id string) {
		key := kind + "/" + id
		if id == "" {
			errs = append(errs, fmt.Errorf("%s without id", kind))
		} else if seen[key] {
			errs = append(errs, fmt.Errorf("duplicate %s %s", kind, id))
		}
		seen[key] = true
	}

	for _, g := range f.Groups {
		unique("group", g.ID)
	}
	for _, u := range f.Users {
		unique("user", u.ID)
		if !domain.Role(u.Role).IsValid() {
			errs = append(errs, fmt.Errorf("user %s: invalid role %q", u.ID, u.Role))
		}
	}
	for _, inc := range f.Incidents {
		unique("incident", inc.ID)
		status := domain.IncidentStatus(inc.Status)
		if !status.IsValid() {
			errs = append(errs, fmt.Errorf("incident %s: invalid status %q", inc.ID, inc.Status))
		}
		if !domain.Priority(inc.Priority).IsValid() {
			errs = append(errs, fmt.Errorf("incident %s: invalid priority %d", inc.ID, inc.Priority))
		}
		if status.RequiresResolution() && inc.ResolutionNotes == "" {
			errs = append(errs, fmt.Errorf("incident %s: %w", inc.ID, incidents.ErrResolutionNotesRequired))
		}
		if len(inc.Activity) == 0 {
			errs = append(errs, fmt.Errorf("incident %s: empty activity log", inc.ID))
		}
		for _, a := range inc.Activity {
			unique("activity", a.ID)
			switch domain.ActivityType(a.Type) {
			case domain.ActivityTypeSystem, domain.ActivityTypeComment, domain.ActivityTypeResolution:
			default:
				errs = append(errs, fmt.Errorf("incident %s: invalid activity type %q", inc.ID, a.Type))
			}
		}
	}
	for _, a := range f.Assets {
		unique("asset", a.ID)
	}
	for _, c := range f.Changes {
		unique("change", c.ID)
	}
	for _, s := range f.SLAs {
		unique("sla", s.ID)
	}

	return errors.Join(errs...)
}

// Directory receives users and groups.
type Directory interface {
	ImportGroup(ctx context.Context, g domain.ResolverGroup) error
	ImportUser(ctx context.Context, u domain.User) error
}

// Importer receives flat records as given.
type Importer[T any] interface {
	Import(ctx context.Context, v T) error
}

// Targets are the stores the fixture is written to.
type Targets struct {
	Incidents incidents.Repository
	Directory Directory
	Assets    Importer[domain.Asset]
	Changes   Importer[domain.ChangeRequest]
	SLAs      Importer[domain.SLA]
}

// Loader writes a fixture into stores.
type Loader struct {
	targets  Targets
	hashCost int
	now      func() time.Time
}

// NewLoader creates a loader for the targets.
func NewLoader(targets Targets) *Loader {
	return &Loader{
		targets:  targets,
		hashCost: bcrypt.DefaultCost,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Load writes the fixture unless incidents already exist, in which case the
// stores are assumed to hold earlier data and nothing is written. It reports
// whether the fixture was loaded.
func (l *Loader) Load(ctx context.Context, f *Fixture) (bool, error) {
	n, err := l.targets.Incidents.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count incidents: %w", err)
	}
	if n > 0 {
		slog.Info("stores already populated, skipping seed", "incidents", n)
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), l.hashCost)
	if err != nil {
		return false, fmt.Errorf("hash demo password: %w", err)
	}
	now := l.now()

	for _, g := range f.Groups {
		if err := l.targets.Directory.ImportGroup(ctx, domain.ResolverGroup{
			ID:          g.ID,
			Name:        g.Name,
			Description: g.Description,
			Lead:        g.Lead,
			CreatedAt:   now,
			UpdatedAt:   now,
		}); err != nil {
			return false, err
		}
	}

	for _, u := range f.Users {
		groups := u.Groups
		if groups == nil {
			groups = []string{}
		}
		if err := l.targets.Directory.ImportUser(ctx, domain.User{
			ID:           u.ID,
			Name:         u.Name,
			Email:        u.Email,
			Role:         domain.Role(u.Role),
			Groups:       groups,
			PasswordHash: string(hash),
			CreatedAt:    now,
			UpdatedAt:    now,
		}); err != nil {
			return false, err
		}
	}

	// The repository prepends, so insert oldest first to keep fixture order.
	for i := len(f.Incidents) - 1; i >= 0; i-- {
		inc := f.Incidents[i].toDomain()
		if err := l.targets.Incidents.Create(ctx, inc); err != nil {
			return false, fmt.Errorf("seed incident %s: %w", inc.ID, err)
		}
	}

	for _, a := range f.Assets {
		if err := l.targets.Assets.Import(ctx, domain.Asset{
			ID:           a.ID,
			Name:         a.Name,
			Category:     a.Category,
			AssignedTo:   a.AssignedTo,
			Status:       domain.AssetStatus(a.Status),
			PurchaseDate: a.PurchaseDate,
			CreatedAt:    now,
			UpdatedAt:    now,
		}); err != nil {
			return false, err
		}
	}

	for _, c := range f.Changes {
		if err := l.targets.Changes.Import(ctx, domain.ChangeRequest{
			ID:               c.ID,
			ShortDescription: c.ShortDescription,
			Type:             domain.ChangeType(c.Type),
			Status:           domain.ChangeStatus(c.Status),
			AssignedTo:       c.AssignedTo,
			PlannedStartDate: c.PlannedStartDate,
			CreatedAt:        now,
			UpdatedAt:        now,
		}); err != nil {
			return false, err
		}
	}

	for _, s := range f.SLAs {
		if err := l.targets.SLAs.Import(ctx, domain.SLA{
			ID:        s.ID,
			Name:      s.Name,
			Type:      domain.AgreementType(s.Type),
			Duration:  s.Duration,
			Condition: s.Condition,
			Target:    s.Target,
			Actual:    s.Actual,
			Status:    domain.AgreementStatus(s.Status),
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return false, err
		}
	}

	slog.Info("seed data loaded",
		"groups", len(f.Groups),
		"users", len(f.Users),
		"incidents", len(f.Incidents),
		"assets", len(f.Assets),
		"changes", len(f.Changes),
		"slas", len(f.SLAs),
	)
	return true, nil
}

func (i Incident) toDomain() *domain.Incident {
	log := make([]domain.IncidentActivity, 0, len(i.Activity))
	for _, a := range i.Activity {
		log = append(log, domain.IncidentActivity{
			ID:        a.ID,
			Timestamp: a.Timestamp.UTC(),
			User:      a.User,
			Type:      domain.ActivityType(a.Type),
			Message:   a.Message,
		})
	}
	return &domain.Incident{
		ID:               i.ID,
		ShortDescription: i.ShortDescription,
		Description:      i.Description,
		Caller:           i.Caller,
		AssignmentGroup:  i.AssignmentGroup,
		Status:           domain.IncidentStatus(i.Status),
		Priority:         domain.Priority(i.Priority),
		Updated:          i.Updated.UTC(),
		ResolutionCode:   domain.ResolutionCode(i.ResolutionCode),
		ResolutionNotes:  i.ResolutionNotes,
		ActivityLog:      incidents.MergeActivity(nil, log),
	}
}
