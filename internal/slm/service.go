// Package slm manages service level, operational level and underpinning
// agreements and summarizes their compliance.
package slm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/pkg/store"
)

// IDPrefix prefixes generated agreement ids.
const IDPrefix = "SLA"

// Defaults applied to new agreements.
const (
	DefaultName      = "New SLA"
	DefaultDuration  = "24 Hours"
	DefaultCondition = "None"
	DefaultTarget    = 95.0

	// meetingThreshold is the compliance above which targets count as met.
	meetingThreshold = 95.0
)

// Agreement errors.
var (
	ErrSLANotFound   = errors.New("agreement not found")
	ErrInvalidType   = errors.New("invalid agreement type")
	ErrInvalidStatus = errors.New("invalid agreement status")
	ErrInvalidTarget = errors.New("percentages must be between 0 and 100")
)

// Summary is the compliance overview of active agreements.
type Summary struct {
	OverallCompliance float64 `json:"overall_compliance"`
	ActiveCount       int     `json:"active_count"`
	BreachedCount     int     `json:"breached_count"`
	MeetingTargets    bool    `json:"meeting_targets"`
}

// Service implements service level management.
type Service struct {
	store store.Store[domain.SLA]
	now   func() time.Time
}

// NewService creates a new service level management service.
func NewService(s store.Store[domain.SLA]) *Service {
	return &Service{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SLAInput holds data for defining an agreement. A nil Target means the default.
type SLAInput struct {
	Name      string
	Type      domain.AgreementType
	Duration  string
	Condition string
	Target    *float64
	Status    domain.AgreementStatus
}

// SLAPatch holds changed fields. Nil means unchanged.
type SLAPatch struct {
	Name      *string
	Type      *domain.AgreementType
	Duration  *string
	Condition *string
	Target    *float64
	Actual    *float64
	Status    *domain.AgreementStatus
}

// List returns all agreements.
func (s *Service) List(ctx context.Context) ([]domain.SLA, error) {
	slas, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agreements: %w", err)
	}
	return slas, nil
}

// Get returns an agreement by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.SLA, error) {
	sla, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSLANotFound
		}
		return nil, fmt.Errorf("get agreement: %w", err)
	}
	return &sla, nil
}

// Create defines a new agreement. New agreements start as drafts with no
// measured compliance.
func (s *Service) Create(ctx context.Context, input SLAInput) (*domain.SLA, error) {
	now := s.now()
	sla := domain.SLA{
		ID:        store.NewID(IDPrefix),
		Name:      orDefault(input.Name, DefaultName),
		Type:      input.Type,
		Duration:  orDefault(input.Duration, DefaultDuration),
		Condition: orDefault(input.Condition, DefaultCondition),
		Target:    DefaultTarget,
		Actual:    0,
		Status:    input.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if input.Target != nil {
		sla.Target = *input.Target
	}
	if sla.Type == "" {
		sla.Type = domain.AgreementSLA
	}
	if sla.Status == "" {
		sla.Status = domain.AgreementStatusDraft
	}
	if err := validate(&sla); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, sla.ID, sla); err != nil {
		return nil, fmt.Errorf("create agreement: %w", err)
	}
	return &sla, nil
}

// Update changes an agreement, including its measured compliance.
func (s *Service) Update(ctx context.Context, id string, patch SLAPatch) (*domain.SLA, error) {
	sla, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		sla.Name = orDefault(*patch.Name, DefaultName)
	}
	if patch.Type != nil {
		sla.Type = *patch.Type
	}
	if patch.Duration != nil {
		sla.Duration = orDefault(*patch.Duration, DefaultDuration)
	}
	if patch.Condition != nil {
		sla.Condition = orDefault(*patch.Condition, DefaultCondition)
	}
	if patch.Target != nil {
		sla.Target = *patch.Target
	}
	if patch.Actual != nil {
		sla.Actual = *patch.Actual
	}
	if patch.Status != nil {
		sla.Status = *patch.Status
	}
	sla.UpdatedAt = s.now()

	if err := validate(sla); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, id, *sla); err != nil {
		return nil, fmt.Errorf("update agreement: %w", err)
	}
	return sla, nil
}

// Delete removes an agreement.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSLANotFound
		}
		return fmt.Errorf("delete agreement: %w", err)
	}
	return nil
}

// Import stores an agreement as given.
func (s *Service) Import(ctx context.Context, sla domain.SLA) error {
	if err := s.store.Create(ctx, sla.ID, sla); err != nil {
		return fmt.Errorf("import agreement %s: %w", sla.ID, err)
	}
	return nil
}

// Summary computes compliance over active agreements.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	slas, err := s.List(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(slas), nil
}

// Summarize computes compliance over the active agreements in slas.
// Overall compliance is the mean actual value rounded to one decimal.
func Summarize(slas []domain.SLA) Summary {
	var (
		sum     float64
		summary Summary
	)
	for i := range slas {
		if slas[i].Status != domain.AgreementStatusActive {
			continue
		}
		summary.ActiveCount++
		sum += slas[i].Actual
		if slas[i].Breached() {
			summary.BreachedCount++
		}
	}
	if summary.ActiveCount > 0 {
		summary.OverallCompliance = math.Round(sum/float64(summary.ActiveCount)*10) / 10
	}
	summary.MeetingTargets = summary.OverallCompliance > meetingThreshold
	return summary
}

func validate(sla *domain.SLA) error {
	switch sla.Type {
	case domain.AgreementSLA, domain.AgreementOLA, domain.AgreementUnderpinningContract:
	default:
		return ErrInvalidType
	}
	switch sla.Status {
	case domain.AgreementStatusActive, domain.AgreementStatusRetired, domain.AgreementStatusDraft:
	default:
		return ErrInvalidStatus
	}
	if sla.Target < 0 || sla.Target > 100 || sla.Actual < 0 || sla.Actual > 100 {
		return ErrInvalidTarget
	}
	return nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
