package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/groupgraph/groupgraph/internal/entities"
	"github.com/groupgraph/groupgraph/internal/repositories"
	"github.com/hashicorp/go-memdb"
)

// MemRelationRepository implements RelationRepository on a memstore
type MemRelationRepository struct {
	store *Store
}

// NewMemRelationRepository creates an in-memory relation repository
func NewMemRelationRepository(store *Store) repositories.RelationRepository {
	return &MemRelationRepository{store: store}
}

// Insert creates a new edge
func (r *MemRelationRepository) Insert(ctx context.Context, edge *entities.Edge) error {
	if err := edge.Validate(); err != nil {
		return fmt.Errorf("invalid edge: %w", err)
	}

	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = time.Now()
	}

	row := &edgeRow{
		ID:        edge.ID,
		Kind:      edge.Kind,
		ParentID:  edge.ParentID,
		ChildID:   edge.ChildID,
		Code:      edge.Code,
		Tags:      append([]string(nil), edge.Tags...),
		Seq:       r.store.nextSeq(),
		CreatedAt: edge.CreatedAt,
	}

	txn := r.store.db.Txn(true)
	if err := txn.Insert(edgeTable, row); err != nil {
		txn.Abort()
		return fmt.Errorf("failed to insert edge: %w", err)
	}
	txn.Commit()

	return nil
}

// Delete removes every edge matching the filter
func (r *MemRelationRepository) Delete(ctx context.Context, filter *repositories.EdgeFilter) (int, error) {
	txn := r.store.db.Txn(true)
	defer txn.Abort()

	rows, err := matchRows(txn, filter)
	if err != nil {
		return 0, err
	}

	for _, row := range rows {
		if err := txn.Delete(edgeTable, row); err != nil {
			return 0, fmt.Errorf("failed to delete edge: %w", err)
		}
	}
	txn.Commit()

	return len(rows), nil
}

// List retrieves edges matching the filter, in insertion order
func (r *MemRelationRepository) List(ctx context.Context, filter *repositories.EdgeFilter) ([]*entities.Edge, error) {
	txn := r.store.db.Txn(false)
	defer txn.Abort()

	rows, err := matchRows(txn, filter)
	if err != nil {
		return nil, err
	}

	var edges []*entities.Edge
	for _, row := range rows {
		edges = append(edges, rowToEdge(row))
	}

	return edges, nil
}

// Match returns the first edge matching kind/parent/child (+code if given)
func (r *MemRelationRepository) Match(ctx context.Context, kind, parentID, childID, code string) (*entities.Edge, error) {
	txn := r.store.db.Txn(false)
	defer txn.Abort()

	rows, err := matchRows(txn, &repositories.EdgeFilter{
		Kind:     kind,
		ParentID: parentID,
		ChildID:  childID,
		Code:     code,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	return rowToEdge(rows[0]), nil
}

// MatchChildren checks many candidate children against one kind/parent pair
// within a single transaction
func (r *MemRelationRepository) MatchChildren(ctx context.Context, kind, parentID string, childIDs []string, code string) (map[string]*entities.Edge, error) {
	matched := make(map[string]*entities.Edge, len(childIDs))
	if len(childIDs) == 0 {
		return matched, nil
	}

	txn := r.store.db.Txn(false)
	defer txn.Abort()

	rows, err := matchRows(txn, &repositories.EdgeFilter{Kind: kind, ParentID: parentID, Code: code})
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(childIDs))
	for _, id := range childIDs {
		wanted[id] = true
	}

	// rows are in insertion order, so the first edge per child wins
	for _, row := range rows {
		if wanted[row.ChildID] {
			if _, ok := matched[row.ChildID]; !ok {
				matched[row.ChildID] = rowToEdge(row)
			}
		}
	}

	return matched, nil
}

// UpdateTags replaces the tag sequence on every edge matching the filter
func (r *MemRelationRepository) UpdateTags(ctx context.Context, filter *repositories.EdgeFilter, tags []string) (int, error) {
	txn := r.store.db.Txn(true)
	defer txn.Abort()

	rows, err := matchRows(txn, filter)
	if err != nil {
		return 0, err
	}

	for _, row := range rows {
		updated := *row
		updated.Tags = append([]string(nil), tags...)
		if err := txn.Insert(edgeTable, &updated); err != nil {
			return 0, fmt.Errorf("failed to update edge tags: %w", err)
		}
	}
	txn.Commit()

	return len(rows), nil
}

// matchRows picks the best index for the filter, applies the residual
// conditions in memory, and returns the rows sorted by insertion order.
func matchRows(txn *memdb.Txn, filter *repositories.EdgeFilter) ([]*edgeRow, error) {
	var it memdb.ResultIterator
	var err error

	switch {
	case filter != nil && filter.Kind != "" && filter.ParentID != "":
		it, err = txn.Get(edgeTable, "parent", filter.Kind, filter.ParentID)
	case filter != nil && filter.Kind != "" && filter.ChildID != "":
		it, err = txn.Get(edgeTable, "child", filter.Kind, filter.ChildID)
	default:
		it, err = txn.Get(edgeTable, "id")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}

	var rows []*edgeRow
	for obj := it.Next(); obj != nil; obj = it.Next() {
		row := obj.(*edgeRow)
		if filter != nil {
			if filter.Kind != "" && row.Kind != filter.Kind {
				continue
			}
			if filter.ParentID != "" && row.ParentID != filter.ParentID {
				continue
			}
			if filter.ChildID != "" && row.ChildID != filter.ChildID {
				continue
			}
			if filter.Code != "" && row.Code != filter.Code {
				continue
			}
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })

	return rows, nil
}

func rowToEdge(row *edgeRow) *entities.Edge {
	edge := &entities.Edge{
		ID:        row.ID,
		Kind:      row.Kind,
		ParentID:  row.ParentID,
		ChildID:   row.ChildID,
		Code:      row.Code,
		CreatedAt: row.CreatedAt,
	}
	if len(row.Tags) > 0 {
		edge.Tags = append([]string(nil), row.Tags...)
	}
	return edge
}
