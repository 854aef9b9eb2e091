package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/groupgraph/groupgraph/internal/entities"
	"github.com/groupgraph/groupgraph/internal/repositories"
	"github.com/lib/pq"
)

// PostgresEntityRepository implements EntityRepository using PostgreSQL.
// Records are stored as JSONB in a single entities table keyed by
// (collection, id).
type PostgresEntityRepository struct {
	db *sql.DB
}

// NewPostgresEntityRepository creates a new PostgreSQL entity repository
func NewPostgresEntityRepository(db *sql.DB) repositories.EntityRepository {
	return &PostgresEntityRepository{db: db}
}

// Load retrieves the first record matching the filter, or nil if none
func (r *PostgresEntityRepository) Load(ctx context.Context, collection string, filter *repositories.RecordFilter) (*entities.Record, error) {
	query := `SELECT id, fields FROM entities WHERE collection = $1`
	args := []interface{}{collection}
	argIdx := 2

	if filter != nil {
		if filter.ID != "" {
			query += fmt.Sprintf(" AND id = $%d", argIdx)
			args = append(args, filter.ID)
			argIdx++
		}
		if len(filter.Fields) > 0 {
			match, err := json.Marshal(filter.Fields)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal field filter: %w", err)
			}
			query += fmt.Sprintf(" AND fields @> $%d", argIdx)
			args = append(args, match)
			argIdx++
		}
	}

	query += " ORDER BY created_at LIMIT 1"

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// LoadMany retrieves the records with the given IDs in a single query
func (r *PostgresEntityRepository) LoadMany(ctx context.Context, collection string, ids []string) (map[string]*entities.Record, error) {
	records := make(map[string]*entities.Record, len(ids))
	if len(ids) == 0 {
		return records, nil
	}

	query := `SELECT id, fields FROM entities WHERE collection = $1 AND id = ANY($2)`
	rows, err := r.db.QueryContext(ctx, query, collection, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records[rec.ID] = rec
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// Save upserts a record and returns the stored version
func (r *PostgresEntityRepository) Save(ctx context.Context, collection string, rec *entities.Record) (*entities.Record, error) {
	if rec == nil || rec.ID == "" {
		return nil, fmt.Errorf("record ID is required")
	}

	fields := rec.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record fields: %w", err)
	}

	query := `
		INSERT INTO entities (collection, id, fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (collection, id)
		DO UPDATE SET fields = EXCLUDED.fields, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, collection, rec.ID, data, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to save record: %w", err)
	}

	return rec.Clone(), nil
}

// Remove deletes the first record matching the filter and returns it
func (r *PostgresEntityRepository) Remove(ctx context.Context, collection string, filter *repositories.RecordFilter) (*entities.Record, error) {
	rec, err := r.Load(ctx, collection, filter)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	query := `DELETE FROM entities WHERE collection = $1 AND id = $2`
	if _, err := r.db.ExecContext(ctx, query, collection, rec.ID); err != nil {
		return nil, fmt.Errorf("failed to remove record: %w", err)
	}

	return rec, nil
}

func scanRecord(row rowScanner) (*entities.Record, error) {
	var rec entities.Record
	var data []byte

	err := row.Scan(&rec.ID, &data)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}

	if err := json.Unmarshal(data, &rec.Fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record fields: %w", err)
	}

	return &rec, nil
}
