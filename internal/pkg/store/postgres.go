package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bissquit/onestop-itsm/internal/pkg/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Postgres is a Store backed by the JSONB records table.
type Postgres[T any] struct {
	db   *pgxpool.Pool
	kind string
}

// NewPostgres creates a store for the record kind.
func NewPostgres[T any](db *pgxpool.Pool, kind string) *Postgres[T] {
	return &Postgres[T]{db: db, kind: kind}
}

// Create inserts a new record.
func (p *Postgres[T]) Create(ctx context.Context, id string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", p.kind, err)
	}

	query := `INSERT INTO records (kind, id, data) VALUES ($1, $2, $3)`
	if _, err := p.db.Exec(ctx, query, p.kind, id, raw); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("create %s: %w", p.kind, err)
	}
	p.recordSize(ctx)
	return nil
}

// Get retrieves a record by id.
func (p *Postgres[T]) Get(ctx context.Context, id string) (T, error) {
	var (
		v   T
		raw []byte
	)
	query := `SELECT data FROM records WHERE kind = $1 AND id = $2`
	if err := p.db.QueryRow(ctx, query, p.kind, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return v, ErrNotFound
		}
		return v, fmt.Errorf("get %s: %w", p.kind, err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", p.kind, err)
	}
	return v, nil
}

// List returns all records of the kind in insertion order.
func (p *Postgres[T]) List(ctx context.Context) ([]T, error) {
	query := `SELECT data FROM records WHERE kind = $1 ORDER BY position`
	rows, err := p.db.Query(ctx, query, p.kind)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", p.kind, err)
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", p.kind, err)
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", p.kind, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", p.kind, err)
	}
	return out, nil
}

// Update replaces the stored document.
func (p *Postgres[T]) Update(ctx context.Context, id string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", p.kind, err)
	}

	query := `UPDATE records SET data = $3, updated_at = NOW() WHERE kind = $1 AND id = $2`
	tag, err := p.db.Exec(ctx, query, p.kind, id, raw)
	if err != nil {
		return fmt.Errorf("update %s: %w", p.kind, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a record.
func (p *Postgres[T]) Delete(ctx context.Context, id string) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM records WHERE kind = $1 AND id = $2`, p.kind, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", p.kind, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	p.recordSize(ctx)
	return nil
}

// Count returns the number of records of the kind.
func (p *Postgres[T]) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.db.QueryRow(ctx, `SELECT COUNT(*) FROM records WHERE kind = $1`, p.kind).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", p.kind, err)
	}
	return n, nil
}

func (p *Postgres[T]) recordSize(ctx context.Context) {
	if n, err := p.Count(ctx); err == nil {
		metrics.RecordStoreSize(p.kind, n)
	}
}
