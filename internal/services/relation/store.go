// Package relation implements the membership graph primitive: a set of
// typed directed edges with bidirectional traversal and batched existence
// checks. The set of edge kinds is fixed at construction.
package relation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/groupgraph/groupgraph/internal/entities"
	"github.com/groupgraph/groupgraph/internal/repositories"
	"go.uber.org/zap"
)

// ErrUnknownKind is returned when an operation names a kind that was not
// registered at store construction
var ErrUnknownKind = errors.New("unknown relation kind")

// Store maintains the edge set and answers graph queries. Kinds are
// immutable once the store is built; registration is a one-time setup step,
// not re-invocable at request time.
type Store struct {
	kinds   *entities.KindSet
	edges   repositories.RelationRepository
	records repositories.EntityRepository
	logger  *zap.Logger
}

// NewStore creates a relation store over the given kind configuration
func NewStore(
	kinds *entities.KindSet,
	edges repositories.RelationRepository,
	records repositories.EntityRepository,
	logger *zap.Logger,
) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		kinds:   kinds,
		edges:   edges,
		records: records,
		logger:  logger,
	}
}

// Kinds returns the store's kind configuration
func (s *Store) Kinds() *entities.KindSet {
	return s.kinds
}

func (s *Store) kind(name string) (entities.RelationKind, error) {
	k, ok := s.kinds.Get(name)
	if !ok {
		return entities.RelationKind{}, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	return k, nil
}

// AddMemberRequest names the edge to create
type AddMemberRequest struct {
	Kind     string
	ParentID string
	ChildID  string
	Code     string
	Tags     []string
}

// AddMember inserts a new edge unconditionally and returns it. No dedup
// check happens at this layer; callers wanting pair-uniqueness check first.
func (s *Store) AddMember(ctx context.Context, req *AddMemberRequest) (*entities.Edge, error) {
	if _, err := s.kind(req.Kind); err != nil {
		return nil, err
	}

	edge := &entities.Edge{
		ID:       uuid.NewString(),
		Kind:     req.Kind,
		ParentID: req.ParentID,
		ChildID:  req.ChildID,
		Code:     req.Code,
		Tags:     req.Tags,
	}
	if err := edge.Validate(); err != nil {
		return nil, err
	}

	if err := s.edges.Insert(ctx, edge); err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	s.logger.Debug("member added", zap.String("edge", edge.String()))

	return edge, nil
}

// RemoveMemberRequest names the edges to remove. Empty fields are
// wildcards; by convention at least one of ParentID/ChildID is set.
type RemoveMemberRequest struct {
	Kind     string
	ParentID string
	ChildID  string
	Code     string
}

// RemoveMember removes every edge matching the request and returns the
// removed count
func (s *Store) RemoveMember(ctx context.Context, req *RemoveMemberRequest) (int, error) {
	if _, err := s.kind(req.Kind); err != nil {
		return 0, err
	}

	if req.ParentID == "" && req.ChildID == "" {
		s.logger.Warn("removing members without parent or child filter",
			zap.String("kind", req.Kind))
	}

	count, err := s.edges.Delete(ctx, &repositories.EdgeFilter{
		Kind:     req.Kind,
		ParentID: req.ParentID,
		ChildID:  req.ChildID,
		Code:     req.Code,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to remove members: %w", err)
	}

	return count, nil
}

// ListRequest names one side of the graph to traverse from
type ListRequest struct {
	Kind     string
	ParentID string // Set for ListChildren
	ChildID  string // Set for ListParents
	Code     string
	Shape    Shape
}

// ListChildren returns the children of a parent in edge-insertion order,
// shaped per the request
func (s *Store) ListChildren(ctx context.Context, req *ListRequest) ([]*Member, error) {
	k, err := s.kind(req.Kind)
	if err != nil {
		return nil, err
	}

	edges, err := s.edges.List(ctx, &repositories.EdgeFilter{
		Kind:     req.Kind,
		ParentID: req.ParentID,
		Code:     req.Code,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}

	return s.shapeMembers(ctx, k.ChildType, edges, func(e *entities.Edge) string { return e.ChildID }, req.Shape)
}

// ListParents returns the parents of a child in edge-insertion order,
// shaped per the request
func (s *Store) ListParents(ctx context.Context, req *ListRequest) ([]*Member, error) {
	k, err := s.kind(req.Kind)
	if err != nil {
		return nil, err
	}

	edges, err := s.edges.List(ctx, &repositories.EdgeFilter{
		Kind:    req.Kind,
		ChildID: req.ChildID,
		Code:    req.Code,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list parents: %w", err)
	}

	return s.shapeMembers(ctx, k.ParentType, edges, func(e *entities.Edge) string { return e.ParentID }, req.Shape)
}

// IsMemberRequest names a single edge to check
type IsMemberRequest struct {
	Kind     string
	ParentID string
	ChildID  string
	Code     string
}

// IsMember returns the matching edge, or nil when the membership does not exist
func (s *Store) IsMember(ctx context.Context, req *IsMemberRequest) (*entities.Edge, error) {
	if _, err := s.kind(req.Kind); err != nil {
		return nil, err
	}

	edge, err := s.edges.Match(ctx, req.Kind, req.ParentID, req.ChildID, req.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	return edge, nil
}

// IsMemberBatchRequest checks many candidate children against one parent
type IsMemberBatchRequest struct {
	Kind     string
	ParentID string
	ChildIDs []string
	Code     string
}

// MemberCheck is one batched existence result. Edge is nil when the child
// is not a member.
type MemberCheck struct {
	ChildID string
	Edge    *entities.Edge
}

// IsMemberBatch checks every candidate child in a single repository round
// trip. The result has exactly one entry per input child, in input order,
// so callers can project it back onto a source list without extra lookups.
func (s *Store) IsMemberBatch(ctx context.Context, req *IsMemberBatchRequest) ([]MemberCheck, error) {
	if _, err := s.kind(req.Kind); err != nil {
		return nil, err
	}

	matched, err := s.edges.MatchChildren(ctx, req.Kind, req.ParentID, req.ChildIDs, req.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to batch check membership: %w", err)
	}

	checks := make([]MemberCheck, len(req.ChildIDs))
	for i, id := range req.ChildIDs {
		checks[i] = MemberCheck{ChildID: id, Edge: matched[id]}
	}

	return checks, nil
}

// RetagMembersRequest names the edges whose tags are replaced
type RetagMembersRequest struct {
	Kind     string
	ParentID string
	ChildID  string
	Tags     []string
}

// RetagMembers replaces the tag sequence on every matching edge and returns
// the updated count. Tags are the only mutable edge field.
func (s *Store) RetagMembers(ctx context.Context, req *RetagMembersRequest) (int, error) {
	if _, err := s.kind(req.Kind); err != nil {
		return 0, err
	}

	count, err := s.edges.UpdateTags(ctx, &repositories.EdgeFilter{
		Kind:     req.Kind,
		ParentID: req.ParentID,
		ChildID:  req.ChildID,
	}, req.Tags)
	if err != nil {
		return 0, fmt.Errorf("failed to retag members: %w", err)
	}

	return count, nil
}

// shapeMembers hydrates one member per edge, preserving edge order. Entity
// hydration is a single LoadMany call; ids with no stored record hydrate as
// bare records, since some collections are externally owned.
func (s *Store) shapeMembers(
	ctx context.Context,
	collection string,
	edges []*entities.Edge,
	idOf func(*entities.Edge) string,
	shape Shape,
) ([]*Member, error) {
	members := make([]*Member, 0, len(edges))

	var hydrated map[string]*entities.Record
	if shape == ShapeEntity && len(edges) > 0 {
		ids := make([]string, 0, len(edges))
		seen := make(map[string]bool, len(edges))
		for _, e := range edges {
			id := idOf(e)
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}

		var err error
		hydrated, err = s.records.LoadMany(ctx, collection, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to hydrate members: %w", err)
		}
	}

	for _, e := range edges {
		id := idOf(e)
		m := &Member{ID: id}
		switch shape {
		case ShapeEntity:
			if rec, ok := hydrated[id]; ok {
				m.Entity = rec
			} else {
				m.Entity = entities.NewRecord(id)
			}
		case ShapeEdge:
			m.Edge = e
		}
		members = append(members, m)
	}

	return members, nil
}
