package repositories

import (
	"context"

	"github.com/groupgraph/groupgraph/internal/entities"
)

// EdgeFilter defines filter criteria for querying edges. Empty fields are
// wildcards. An all-empty filter matches every edge; callers are expected
// to guard against passing one to Delete.
type EdgeFilter struct {
	Kind     string // Filter by kind name (optional)
	ParentID string // Filter by parent ID (optional)
	ChildID  string // Filter by child ID (optional)
	Code     string // Filter by secondary key (optional)
}

// Empty reports whether the filter matches every edge
func (f *EdgeFilter) Empty() bool {
	return f == nil || (f.Kind == "" && f.ParentID == "" && f.ChildID == "" && f.Code == "")
}

// RelationRepository defines the interface for edge data access.
// List results are always in edge-insertion order.
type RelationRepository interface {
	// Insert creates a new edge unconditionally (no dedup check at this layer)
	Insert(ctx context.Context, edge *entities.Edge) error

	// Delete removes every edge matching the filter and returns the removed count
	Delete(ctx context.Context, filter *EdgeFilter) (int, error)

	// List retrieves edges matching the filter, in insertion order
	List(ctx context.Context, filter *EdgeFilter) ([]*entities.Edge, error)

	// Match returns the first edge (in insertion order) matching
	// kind/parent/child, optionally narrowed by code. Returns nil when no
	// edge matches.
	Match(ctx context.Context, kind, parentID, childID, code string) (*entities.Edge, error)

	// MatchChildren checks many candidate children against one kind/parent
	// pair in a single round trip. The result maps each matched child ID to
	// its edge; unmatched children are absent from the map.
	MatchChildren(ctx context.Context, kind, parentID string, childIDs []string, code string) (map[string]*entities.Edge, error)

	// UpdateTags replaces the tag sequence on every edge matching the filter
	// and returns the updated count. Tags are the only mutable edge field.
	UpdateTags(ctx context.Context, filter *EdgeFilter, tags []string) (int, error)
}
