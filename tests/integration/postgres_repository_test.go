//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/incidents"
	incidentspostgres "github.com/bissquit/onestop-itsm/internal/incidents/postgres"
	"github.com/bissquit/onestop-itsm/internal/pkg/postgres"
	"github.com/bissquit/onestop-itsm/migrations"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freshDatabase creates an empty, migrated database on the test server so a
// test can observe untouched sequences.
func freshDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	name := "onestop_" + uuid.NewString()[:8]
	_, err := testDB.Exec(ctx, fmt.Sprintf("CREATE DATABASE %q", name))
	require.NoError(t, err)

	u, err := url.Parse(postgresURL)
	require.NoError(t, err)
	u.Path = "/" + name
	dbURL := u.String()

	require.NoError(t, postgres.Migrate(dbURL, migrations.FS, ".", postgres.MigrateUp))

	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Close()
		_, _ = testDB.Exec(context.Background(), fmt.Sprintf("DROP DATABASE IF EXISTS %q WITH (FORCE)", name))
	})
	return pool
}

func importedIncident(id, shortDescription string) *domain.Incident {
	now := time.Date(2024, 7, 29, 9, 0, 0, 0, time.UTC)
	return &domain.Incident{
		ID:               id,
		ShortDescription: shortDescription,
		Caller:           "Jane Smith",
		Status:           domain.IncidentStatusNew,
		Priority:         domain.PriorityLow,
		Updated:          now,
		ActivityLog: []domain.IncidentActivity{{
			ID:        uuid.NewString(),
			Timestamp: now,
			User:      "System",
			Type:      domain.ActivityTypeSystem,
			Message:   "Incident created.",
		}},
	}
}

func TestPostgresRepository_ImportedIDsAdvanceSequence(t *testing.T) {
	repo := incidentspostgres.NewRepository(freshDatabase(t))
	ctx := context.Background()

	// Below the sequence start: nothing to skip.
	require.NoError(t, repo.Create(ctx, importedIncident("INC000005", "Old ticket")))
	// Exactly the first value the untouched sequence would hand out.
	require.NoError(t, repo.Create(ctx, importedIncident("INC001001", "Imported ticket")))

	id, err := repo.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "INC001002", id)

	require.NoError(t, repo.Create(ctx, importedIncident(id, "Fresh ticket")))
	next, err := repo.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "INC001003", next)
}

func TestPostgresRepository_QueryMatchesLiterally(t *testing.T) {
	repo := incidentspostgres.NewRepository(freshDatabase(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, importedIncident("INC001001", "CPU at 100% on db01")))
	require.NoError(t, repo.Create(ctx, importedIncident("INC001002", "Disk at 1000 GB on db101")))

	tests := []struct {
		query string
		want  []string
	}{
		{"100%", []string{"INC001001"}},
		{"cpu AT 100%", []string{"INC001001"}},
		{"db_01", nil},
		{"DB101", []string{"INC001002"}},
		{"inc00100", []string{"INC001002", "INC001001"}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			list, err := repo.List(ctx, incidents.ListFilter{Query: tt.query})
			require.NoError(t, err)

			var ids []string
			for _, inc := range list {
				ids = append(ids, inc.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}
