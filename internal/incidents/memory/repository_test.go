package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/incidents"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_NextIDContinuesAfterSeed(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Incident{ID: "INC001006"}))
	require.NoError(t, repo.Create(ctx, &domain.Incident{ID: "INC001001"}))

	id, err := repo.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "INC001007", id)
}

func TestRepository_CreatePrepends(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Incident{ID: "INC001001"}))
	require.NoError(t, repo.Create(ctx, &domain.Incident{ID: "INC001002"}))

	list, err := repo.List(ctx, incidents.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "INC001002", list[0].ID)
	assert.Equal(t, "INC001001", list[1].ID)
}

func TestRepository_CreateDuplicate(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Incident{ID: "INC001001"}))
	assert.Error(t, repo.Create(ctx, &domain.Incident{ID: "INC001001"}))
}

func TestRepository_UpdateReplacesInPlace(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	for _, id := range []string{"INC001001", "INC001002", "INC001003"} {
		require.NoError(t, repo.Create(ctx, &domain.Incident{ID: id, ShortDescription: "old"}))
	}

	updated, err := repo.Update(ctx, "INC001002", func(cur *domain.Incident) (*domain.Incident, error) {
		cur.ShortDescription = "new"
		return cur, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.ShortDescription)

	list, err := repo.List(ctx, incidents.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, "INC001002", list[1].ID)
	assert.Equal(t, "new", list[1].ShortDescription)
}

func TestRepository_UpdateErrorLeavesStoreUntouched(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.Incident{ID: "INC001001", ShortDescription: "old"}))

	boom := errors.New("boom")
	_, err := repo.Update(ctx, "INC001001", func(cur *domain.Incident) (*domain.Incident, error) {
		cur.ShortDescription = "mutated"
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	got, err := repo.GetByID(ctx, "INC001001")
	require.NoError(t, err)
	assert.Equal(t, "old", got.ShortDescription)
}

func TestRepository_NotFound(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "INC000000")
	require.ErrorIs(t, err, incidents.ErrIncidentNotFound)

	_, err = repo.Update(ctx, "INC000000", func(cur *domain.Incident) (*domain.Incident, error) { return cur, nil })
	require.ErrorIs(t, err, incidents.ErrIncidentNotFound)
}

func TestRepository_ReturnsCopies(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.Incident{
		ID:          "INC001001",
		ActivityLog: []domain.IncidentActivity{{ID: "a", Message: "Incident created."}},
	}))

	got, err := repo.GetByID(ctx, "INC001001")
	require.NoError(t, err)
	got.ActivityLog[0].Message = "tampered"

	again, err := repo.GetByID(ctx, "INC001001")
	require.NoError(t, err)
	assert.Equal(t, "Incident created.", again.ActivityLog[0].Message)
}

func TestRepository_ListFilter(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	seed := []domain.Incident{
		{ID: "INC001001", ShortDescription: "Email not syncing", Status: domain.IncidentStatusNew, Priority: domain.PriorityHigh, AssignmentGroup: "Service Desk", Caller: "John Doe"},
		{ID: "INC001002", ShortDescription: "Printer jam", Status: domain.IncidentStatusInProgress, Priority: domain.PriorityLow, AssignmentGroup: "Hardware Support", Caller: "Jane Smith"},
		{ID: "INC001003", ShortDescription: "VPN drops", Status: domain.IncidentStatusNew, Priority: domain.PriorityCritical, AssignmentGroup: "Network Support", Caller: "Jane Smith"},
	}
	for i := range seed {
		require.NoError(t, repo.Create(ctx, &seed[i]))
	}

	tests := []struct {
		name   string
		filter incidents.ListFilter
		want   []string
	}{
		{"status", incidents.ListFilter{Status: domain.IncidentStatusNew}, []string{"INC001003", "INC001001"}},
		{"priority", incidents.ListFilter{Priority: domain.PriorityLow}, []string{"INC001002"}},
		{"group", incidents.ListFilter{AssignmentGroup: "Network Support"}, []string{"INC001003"}},
		{"caller", incidents.ListFilter{Caller: "Jane Smith"}, []string{"INC001003", "INC001002"}},
		{"query by description", incidents.ListFilter{Query: "printer"}, []string{"INC001002"}},
		{"query by id", incidents.ListFilter{Query: "inc001001"}, []string{"INC001001"}},
		{"no match", incidents.ListFilter{Query: "kettle"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)
			got := make([]string, 0, len(list))
			for _, inc := range list {
				got = append(got, inc.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRepository_ConcurrentUpdates(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.Incident{ID: "INC001001"}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Update(ctx, "INC001001", func(cur *domain.Incident) (*domain.Incident, error) {
				cur.ActivityLog = append(cur.ActivityLog, domain.IncidentActivity{Type: domain.ActivityTypeComment})
				return cur, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.GetByID(ctx, "INC001001")
	require.NoError(t, err)
	assert.Len(t, got.ActivityLog, 50)
}
