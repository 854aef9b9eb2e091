package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/groupgraph/groupgraph/internal/entities"
	"github.com/groupgraph/groupgraph/internal/repositories"
	"github.com/lib/pq"
)

// PostgresRelationRepository implements RelationRepository using PostgreSQL
type PostgresRelationRepository struct {
	db *sql.DB
}

// NewPostgresRelationRepository creates a new PostgreSQL relation repository
func NewPostgresRelationRepository(db *sql.DB) repositories.RelationRepository {
	return &PostgresRelationRepository{db: db}
}

// Insert creates a new edge. Insertion order is preserved by the seq column.
func (r *PostgresRelationRepository) Insert(ctx context.Context, edge *entities.Edge) error {
	if err := edge.Validate(); err != nil {
		return fmt.Errorf("invalid edge: %w", err)
	}

	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO edges (id, kind, parent_id, child_id, code, tags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	tags := edge.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := r.db.ExecContext(ctx, query,
		edge.ID, edge.Kind, edge.ParentID, edge.ChildID, edge.Code, pq.Array(tags), edge.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert edge: %w", err)
	}

	return nil
}

// Delete removes every edge matching the filter
func (r *PostgresRelationRepository) Delete(ctx context.Context, filter *repositories.EdgeFilter) (int, error) {
	query := `DELETE FROM edges WHERE true`
	query, args := appendEdgeFilter(query, nil, filter)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete edges: %w", err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted edges: %w", err)
	}

	return int(count), nil
}

// List retrieves edges matching the filter, in insertion order
func (r *PostgresRelationRepository) List(ctx context.Context, filter *repositories.EdgeFilter) ([]*entities.Edge, error) {
	query := `
		SELECT id, kind, parent_id, child_id, code, tags, created_at
		FROM edges
		WHERE true
	`
	query, args := appendEdgeFilter(query, nil, filter)
	query += " ORDER BY seq"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	defer rows.Close()

	var edges []*entities.Edge
	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}

	return edges, nil
}

// Match returns the first edge matching kind/parent/child (+code if given)
func (r *PostgresRelationRepository) Match(ctx context.Context, kind, parentID, childID, code string) (*entities.Edge, error) {
	query := `
		SELECT id, kind, parent_id, child_id, code, tags, created_at
		FROM edges
		WHERE true
	`
	query, args := appendEdgeFilter(query, nil, &repositories.EdgeFilter{
		Kind:     kind,
		ParentID: parentID,
		ChildID:  childID,
		Code:     code,
	})
	query += " ORDER BY seq LIMIT 1"

	row := r.db.QueryRowContext(ctx, query, args...)
	edge, err := scanEdge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return edge, nil
}

// MatchChildren checks many candidate children against one kind/parent pair
// in a single query. Unmatched children are absent from the result map.
func (r *PostgresRelationRepository) MatchChildren(ctx context.Context, kind, parentID string, childIDs []string, code string) (map[string]*entities.Edge, error) {
	matched := make(map[string]*entities.Edge, len(childIDs))
	if len(childIDs) == 0 {
		return matched, nil
	}

	query := `
		SELECT DISTINCT ON (child_id) id, kind, parent_id, child_id, code, tags, created_at
		FROM edges
		WHERE kind = $1 AND parent_id = $2 AND child_id = ANY($3)
	`
	args := []interface{}{kind, parentID, pq.Array(childIDs)}
	if code != "" {
		query += " AND code = $4"
		args = append(args, code)
	}
	query += " ORDER BY child_id, seq"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to match children: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		matched[edge.ChildID] = edge
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matched edges: %w", err)
	}

	return matched, nil
}

// UpdateTags replaces the tag sequence on every edge matching the filter
func (r *PostgresRelationRepository) UpdateTags(ctx context.Context, filter *repositories.EdgeFilter, tags []string) (int, error) {
	if tags == nil {
		tags = []string{}
	}

	query := `UPDATE edges SET tags = $1 WHERE true`
	query, args := appendEdgeFilter(query, []interface{}{pq.Array(tags)}, filter)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update edge tags: %w", err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count updated edges: %w", err)
	}

	return int(count), nil
}

// appendEdgeFilter builds a dynamic WHERE clause from the filter
func appendEdgeFilter(query string, args []interface{}, filter *repositories.EdgeFilter) (string, []interface{}) {
	if filter == nil {
		return query, args
	}

	argIdx := len(args) + 1
	if filter.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, filter.Kind)
		argIdx++
	}
	if filter.ParentID != "" {
		query += fmt.Sprintf(" AND parent_id = $%d", argIdx)
		args = append(args, filter.ParentID)
		argIdx++
	}
	if filter.ChildID != "" {
		query += fmt.Sprintf(" AND child_id = $%d", argIdx)
		args = append(args, filter.ChildID)
		argIdx++
	}
	if filter.Code != "" {
		query += fmt.Sprintf(" AND code = $%d", argIdx)
		args = append(args, filter.Code)
		argIdx++
	}

	return query, args
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEdge(row rowScanner) (*entities.Edge, error) {
	var edge entities.Edge
	var tags pq.StringArray

	err := row.Scan(&edge.ID, &edge.Kind, &edge.ParentID, &edge.ChildID, &edge.Code, &tags, &edge.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan edge: %w", err)
	}

	if len(tags) > 0 {
		edge.Tags = []string(tags)
	}

	return &edge, nil
}
