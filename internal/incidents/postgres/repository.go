// Package postgres provides PostgreSQL implementation of the incident repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/incidents"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements the incidents.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const incidentColumns = `id, short_description, description, caller, assignment_group,
	status, priority, resolution_code, resolution_notes, updated_at`

// NextID reserves the next value of the incident number sequence.
func (r *Repository) NextID(ctx context.Context) (string, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT nextval('incident_number_seq')`).Scan(&n); err != nil {
		return "", fmt.Errorf("next incident id: %w", err)
	}
	return fmt.Sprintf("INC%06d", n), nil
}

// Create inserts an incident together with its activity log.
func (r *Repository) Create(ctx context.Context, inc *domain.Incident) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	query := `
		INSERT INTO incidents (` + incidentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = tx.Exec(ctx, query,
		inc.ID,
		inc.ShortDescription,
		inc.Description,
		inc.Caller,
		inc.AssignmentGroup,
		inc.Status,
		int(inc.Priority),
		inc.ResolutionCode,
		inc.ResolutionNotes,
		inc.Updated,
	)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}

	// Keep the sequence ahead of explicitly numbered (seeded) incidents.
	if n, ok := parseNumber(inc.ID); ok {
		if _, err := tx.Exec(ctx, `
			SELECT setval('incident_number_seq', $1)
			FROM incident_number_seq
			WHERE $1 > last_value OR ($1 = last_value AND NOT is_called)
		`, n); err != nil {
			return fmt.Errorf("advance incident sequence: %w", err)
		}
	}

	if err := insertActivity(ctx, tx, inc.ID, inc.ActivityLog); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByID retrieves an incident with its activity log.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`

	inc, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}

	logs, err := loadActivity(ctx, r.db, []string{id})
	if err != nil {
		return nil, err
	}
	inc.ActivityLog = nonNil(logs[id])

	return inc, nil
}

// List returns incidents matching the filter, newest-created first.
func (r *Repository) List(ctx context.Context, filter incidents.ListFilter) ([]domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents`

	var (
		conds []string
		args  []interface{}
	)
	addCond := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Status != "" {
		addCond("status = $%d", filter.Status)
	}
	if filter.Priority != 0 {
		addCond("priority = $%d", int(filter.Priority))
	}
	if filter.AssignmentGroup != "" {
		addCond("assignment_group = $%d", filter.AssignmentGroup)
	}
	if filter.Caller != "" {
		addCond("caller = $%d", filter.Caller)
	}
	if filter.Query != "" {
		// Plain substring match; % and _ in the query are literal.
		args = append(args, strings.ToLower(filter.Query))
		conds = append(conds, fmt.Sprintf("(strpos(lower(id), $%d) > 0 OR strpos(lower(short_description), $%d) > 0)", len(args), len(args)))
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY position DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Incident, 0)
	ids := make([]string, 0)
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		result = append(result, *inc)
		ids = append(ids, inc.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}

	if len(ids) == 0 {
		return result, nil
	}

	logs, err := loadActivity(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].ActivityLog = nonNil(logs[result[i].ID])
	}

	return result, nil
}

// Update locks the incident row, applies fn and persists the result.
// Only activity entries not already stored are inserted.
func (r *Repository) Update(ctx context.Context, id string, fn incidents.MutateFunc) (*domain.Incident, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1 FOR UPDATE`
	current, err := scanIncident(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("lock incident: %w", err)
	}

	logs, err := loadActivity(ctx, tx, []string{id})
	if err != nil {
		return nil, err
	}
	current.ActivityLog = nonNil(logs[id])

	known := make(map[string]bool, len(current.ActivityLog))
	for _, e := range current.ActivityLog {
		known[e.ID] = true
	}

	next, err := fn(current.Clone())
	if err != nil {
		return nil, err
	}
	next.ID = id

	_, err = tx.Exec(ctx, `
		UPDATE incidents
		SET short_description = $2, description = $3, caller = $4, assignment_group = $5,
		    status = $6, priority = $7, resolution_code = $8, resolution_notes = $9, updated_at = $10
		WHERE id = $1
	`,
		id,
		next.ShortDescription,
		next.Description,
		next.Caller,
		next.AssignmentGroup,
		next.Status,
		int(next.Priority),
		next.ResolutionCode,
		next.ResolutionNotes,
		next.Updated,
	)
	if err != nil {
		return nil, fmt.Errorf("update incident: %w", err)
	}

	added := make([]domain.IncidentActivity, 0)
	for _, e := range next.ActivityLog {
		if !known[e.ID] {
			added = append(added, e)
		}
	}
	if err := insertActivity(ctx, tx, id, added); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return next, nil
}

// Count returns the number of stored incidents.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count incidents: %w", err)
	}
	return n, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadActivity(ctx context.Context, q querier, ids []string) (map[string][]domain.IncidentActivity, error) {
	rows, err := q.Query(ctx, `
		SELECT id, incident_id, created_at, actor, type, message
		FROM incident_activity
		WHERE incident_id = ANY($1)
		ORDER BY created_at DESC, seq ASC
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("load activity: %w", err)
	}
	defer rows.Close()

	logs := make(map[string][]domain.IncidentActivity, len(ids))
	for rows.Next() {
		var (
			e          domain.IncidentActivity
			incidentID string
		)
		if err := rows.Scan(&e.ID, &incidentID, &e.Timestamp, &e.User, &e.Type, &e.Message); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		logs[incidentID] = append(logs[incidentID], e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}

	return logs, nil
}

func insertActivity(ctx context.Context, tx pgx.Tx, incidentID string, entries []domain.IncidentActivity) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO incident_activity (id, incident_id, created_at, actor, type, message)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, e.ID, incidentID, e.Timestamp, e.User, e.Type, e.Message)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var (
		inc      domain.Incident
		priority int
	)
	err := row.Scan(
		&inc.ID,
		&inc.ShortDescription,
		&inc.Description,
		&inc.Caller,
		&inc.AssignmentGroup,
		&inc.Status,
		&priority,
		&inc.ResolutionCode,
		&inc.ResolutionNotes,
		&inc.Updated,
	)
	if err != nil {
		return nil, err
	}
	inc.Priority = domain.Priority(priority)
	inc.Updated = inc.Updated.UTC()
	return &inc, nil
}

func nonNil(log []domain.IncidentActivity) []domain.IncidentActivity {
	if log == nil {
		return make([]domain.IncidentActivity, 0)
	}
	for i := range log {
		log[i].Timestamp = log[i].Timestamp.UTC()
	}
	return log
}

func parseNumber(id string) (int64, bool) {
	if !strings.HasPrefix(id, "INC") {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(id, "INC"), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.Error("failed to rollback transaction", "error", err)
	}
}
