package relation

import (
	"fmt"

	"github.com/groupgraph/groupgraph/internal/entities"
)

// Shape selects the output form of a traversal result. It replaces a
// free-form string argument with a closed set of variants.
type Shape int

const (
	// ShapeEntity hydrates each member from its entity collection
	ShapeEntity Shape = iota
	// ShapeID returns member ids only
	ShapeID
	// ShapeEdge projects the underlying edge for each member
	ShapeEdge
)

// Member is one traversal result. ID is always set; Entity and Edge are
// populated per the requested shape.
type Member struct {
	ID     string
	Entity *entities.Record
	Edge   *entities.Edge
}

// String returns the wire name of the shape
func (s Shape) String() string {
	switch s {
	case ShapeEntity:
		return "entity"
	case ShapeID:
		return "id"
	case ShapeEdge:
		return "edge"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// ParseShape parses a wire name into a Shape. The empty string defaults to
// ShapeEntity.
func ParseShape(name string) (Shape, error) {
	switch name {
	case "", "entity":
		return ShapeEntity, nil
	case "id":
		return ShapeID, nil
	case "edge":
		return ShapeEdge, nil
	default:
		return ShapeEntity, fmt.Errorf("unknown shape %q", name)
	}
}
