package entities

import (
	"fmt"
	"time"
)

// Edge represents one membership fact in the relation graph.
// Example: grpown:o1->g3 means: owner "o1" owns group "g3".
// Code is an optional secondary key used to disambiguate multiple edges
// between the same pair or to tag an edge for filtered lookups. Tags are
// free-form labels copied onto the edge; they are the only field that may
// be replaced after creation.
type Edge struct {
	ID        string   // Generated identifier (uuid)
	Kind      string   // Relation kind name (e.g., "grpown")
	ParentID  string   // Parent entity ID (e.g., owner id)
	ChildID   string   // Child entity ID (e.g., group id)
	Code      string   // Secondary key (optional)
	Tags      []string // Free-form labels (optional)
	CreatedAt time.Time
}

// String returns a string representation of the edge
// Format: kind:parent_id->child_id[#code]
func (e *Edge) String() string {
	if e.Code != "" {
		return fmt.Sprintf("%s:%s->%s#%s", e.Kind, e.ParentID, e.ChildID, e.Code)
	}
	return fmt.Sprintf("%s:%s->%s", e.Kind, e.ParentID, e.ChildID)
}

// Validate checks if the edge is valid
func (e *Edge) Validate() error {
	if e.Kind == "" {
		return fmt.Errorf("kind is required")
	}
	if e.ParentID == "" {
		return fmt.Errorf("parent ID is required")
	}
	if e.ChildID == "" {
		return fmt.Errorf("child ID is required")
	}
	return nil
}

// Clone returns a deep copy of the edge
func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}
	c := *e
	if e.Tags != nil {
		c.Tags = append([]string(nil), e.Tags...)
	}
	return &c
}
