package slm

import (
	"context"
	"testing"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAgreements() []domain.SLA {
	return []domain.SLA{
		{ID: "SLA001", Name: "Priority 1 Resolution", Type: domain.AgreementSLA, Target: 99.0, Actual: 98.2, Status: domain.AgreementStatusActive},
		{ID: "SLA002", Name: "Priority 2 Resolution", Type: domain.AgreementSLA, Target: 95.0, Actual: 96.5, Status: domain.AgreementStatusActive},
		{ID: "SLA003", Name: "General Request Fulfillment", Type: domain.AgreementSLA, Target: 90.0, Actual: 94.2, Status: domain.AgreementStatusActive},
		{ID: "OLA001", Name: "Network Team Response", Type: domain.AgreementOLA, Target: 98.0, Actual: 99.1, Status: domain.AgreementStatusActive},
		{ID: "UPC001", Name: "ISP Availability", Type: domain.AgreementUnderpinningContract, Target: 99.9, Actual: 99.5, Status: domain.AgreementStatusActive},
		{ID: "SLA004", Name: "Password Reset", Type: domain.AgreementSLA, Target: 95.0, Actual: 92.0, Status: domain.AgreementStatusDraft},
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(store.NewMemory[domain.SLA]("sla"))
	for _, sla := range seedAgreements() {
		require.NoError(t, svc.Import(context.Background(), sla))
	}
	return svc
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name string
		slas []domain.SLA
		want Summary
	}{
		{
			name: "console fixture",
			slas: seedAgreements(),
			// (98.2 + 96.5 + 94.2 + 99.1 + 99.5) / 5 = 97.5
			want: Summary{OverallCompliance: 97.5, ActiveCount: 5, BreachedCount: 2, MeetingTargets: true},
		},
		{
			name: "nothing active",
			slas: []domain.SLA{{Status: domain.AgreementStatusDraft, Actual: 50, Target: 90}},
			want: Summary{},
		},
		{
			name: "below threshold",
			slas: []domain.SLA{
				{Status: domain.AgreementStatusActive, Actual: 95.0, Target: 90},
				{Status: domain.AgreementStatusRetired, Actual: 100, Target: 90},
			},
			want: Summary{OverallCompliance: 95.0, ActiveCount: 1},
		},
		{
			name: "rounds to one decimal",
			slas: []domain.SLA{
				{Status: domain.AgreementStatusActive, Actual: 96.66, Target: 90},
				{Status: domain.AgreementStatusActive, Actual: 96.0, Target: 90},
			},
			want: Summary{OverallCompliance: 96.3, ActiveCount: 2, MeetingTargets: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.slas))
		})
	}
}

func TestCreate_Defaults(t *testing.T) {
	svc := newTestService(t)

	sla, err := svc.Create(context.Background(), SLAInput{})
	require.NoError(t, err)

	assert.Equal(t, DefaultName, sla.Name)
	assert.Equal(t, domain.AgreementSLA, sla.Type)
	assert.Equal(t, DefaultDuration, sla.Duration)
	assert.Equal(t, DefaultCondition, sla.Condition)
	assert.Equal(t, DefaultTarget, sla.Target)
	assert.Zero(t, sla.Actual)
	assert.Equal(t, domain.AgreementStatusDraft, sla.Status)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, summary.ActiveCount, "drafts do not count")
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestService(t)
	over := 101.0

	_, err := svc.Create(context.Background(), SLAInput{Target: &over})
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = svc.Create(context.Background(), SLAInput{Type: "KPI"})
	assert.ErrorIs(t, err, ErrInvalidType)

	_, err = svc.Create(context.Background(), SLAInput{Status: "Paused"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdate_ActivatesDraft(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	active := domain.AgreementStatusActive
	sla, err := svc.Update(ctx, "SLA004", SLAPatch{Status: &active})
	require.NoError(t, err)
	assert.True(t, sla.Breached())

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, summary.ActiveCount)
	assert.Equal(t, 3, summary.BreachedCount)

	_, err = svc.Update(ctx, "SLA404", SLAPatch{})
	assert.ErrorIs(t, err, ErrSLANotFound)
}
