package entities

import (
	"fmt"
	"sort"
)

// RelationKind is a named directed edge type in the relation graph.
// Example: kind "grpown" with parent type "owners" and child type "groups"
// means: an owner entity owns a group entity.
type RelationKind struct {
	Name       string // Kind name (e.g., "grpown")
	ParentType string // Collection the parent entity belongs to (e.g., "owners")
	ChildType  string // Collection the child entity belongs to (e.g., "groups")
}

// Validate checks if the relation kind is valid
func (k *RelationKind) Validate() error {
	if k.Name == "" {
		return fmt.Errorf("kind name is required")
	}
	if k.ParentType == "" {
		return fmt.Errorf("parent type is required")
	}
	if k.ChildType == "" {
		return fmt.Errorf("child type is required")
	}
	return nil
}

// KindSet is an immutable set of relation kinds. It is built once at startup
// and passed into the relation store constructor; a kind's parent/child
// pairing never changes after registration.
type KindSet struct {
	kinds map[string]RelationKind
}

// NewKindSet creates a KindSet from the given kinds. A kind appearing more
// than once is overwritten by the later definition (last writer wins).
func NewKindSet(kinds ...RelationKind) *KindSet {
	s := &KindSet{kinds: make(map[string]RelationKind, len(kinds))}
	for _, k := range kinds {
		s.kinds[k.Name] = k
	}
	return s
}

// Merge returns a new KindSet containing the kinds of both sets. Kinds in
// other take precedence over kinds with the same name in s.
func (s *KindSet) Merge(other *KindSet) *KindSet {
	merged := &KindSet{kinds: make(map[string]RelationKind, len(s.kinds)+len(other.kinds))}
	for name, k := range s.kinds {
		merged.kinds[name] = k
	}
	for name, k := range other.kinds {
		merged.kinds[name] = k
	}
	return merged
}

// Get returns the kind with the given name
func (s *KindSet) Get(name string) (RelationKind, bool) {
	k, ok := s.kinds[name]
	return k, ok
}

// Len returns the number of kinds in the set
func (s *KindSet) Len() int {
	return len(s.kinds)
}

// Names returns the kind names in lexical order
func (s *KindSet) Names() []string {
	names := make([]string, 0, len(s.kinds))
	for name := range s.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
