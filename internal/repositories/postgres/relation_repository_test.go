package postgres

import (
	"context"
	"testing"

	"github.com/groupgraph/groupgraph/internal/entities"
	"github.com/groupgraph/groupgraph/internal/repositories"
)

func TestPostgresRelationRepository_InsertAndList(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	repo := NewPostgresRelationRepository(db)
	ctx := context.Background()

	edges := []*entities.Edge{
		{Kind: "grpown", ParentID: "o1", ChildID: "g1", Code: "standard", Tags: []string{"blue"}},
		{Kind: "grpown", ParentID: "o1", ChildID: "g2"},
		{Kind: "grpown", ParentID: "o2", ChildID: "g3"},
	}
	for _, edge := range edges {
		if err := repo.Insert(ctx, edge); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		if edge.ID == "" {
			t.Error("Insert() did not assign an edge ID")
		}
	}

	got, err := repo.List(ctx, &repositories.EdgeFilter{Kind: "grpown", ParentID: "o1"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List() returned %d edges, want 2", len(got))
	}
	if got[0].ChildID != "g1" || got[1].ChildID != "g2" {
		t.Errorf("List() order = [%s, %s], want [g1, g2]", got[0].ChildID, got[1].ChildID)
	}
	if len(got[0].Tags) != 1 || got[0].Tags[0] != "blue" {
		t.Errorf("tags = %v, want [blue]", got[0].Tags)
	}
}

func TestPostgresRelationRepository_MatchAndDelete(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	repo := NewPostgresRelationRepository(db)
	ctx := context.Background()

	if err := repo.Insert(ctx, &entities.Edge{Kind: "usrgrp", ParentID: "g1", ChildID: "u1"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	edge, err := repo.Match(ctx, "usrgrp", "g1", "u1", "")
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if edge == nil {
		t.Fatal("Match() = nil, want edge")
	}

	count, err := repo.Delete(ctx, &repositories.EdgeFilter{Kind: "usrgrp", ParentID: "g1", ChildID: "u1"})
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Delete() count = %d, want 1", count)
	}

	edge, err = repo.Match(ctx, "usrgrp", "g1", "u1", "")
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if edge != nil {
		t.Errorf("Match() after delete = %v, want nil", edge)
	}
}

func TestPostgresRelationRepository_MatchChildren(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	repo := NewPostgresRelationRepository(db)
	ctx := context.Background()

	for _, childID := range []string{"g1", "g3"} {
		if err := repo.Insert(ctx, &entities.Edge{Kind: "grpown", ParentID: "o1", ChildID: childID}); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	matched, err := repo.MatchChildren(ctx, "grpown", "o1", []string{"g1", "g2", "g3"}, "")
	if err != nil {
		t.Fatalf("MatchChildren() error = %v", err)
	}
	if len(matched) != 2 {
		t.Fatalf("MatchChildren() matched %d, want 2", len(matched))
	}
	if matched["g1"] == nil || matched["g3"] == nil || matched["g2"] != nil {
		t.Errorf("MatchChildren() = %v, want g1 and g3 only", matched)
	}
}

func TestPostgresRelationRepository_UpdateTags(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	repo := NewPostgresRelationRepository(db)
	ctx := context.Background()

	for _, parentID := range []string{"o1", "o2"} {
		if err := repo.Insert(ctx, &entities.Edge{Kind: "grpown", ParentID: parentID, ChildID: "g1", Tags: []string{"old"}}); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	count, err := repo.UpdateTags(ctx, &repositories.EdgeFilter{Kind: "grpown", ChildID: "g1"}, []string{"new", "tags"})
	if err != nil {
		t.Fatalf("UpdateTags() error = %v", err)
	}
	if count != 2 {
		t.Errorf("UpdateTags() count = %d, want 2", count)
	}

	edges, err := repo.List(ctx, &repositories.EdgeFilter{Kind: "grpown", ChildID: "g1"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for _, edge := range edges {
		if len(edge.Tags) != 2 || edge.Tags[0] != "new" || edge.Tags[1] != "tags" {
			t.Errorf("edge %s tags = %v, want [new tags]", edge, edge.Tags)
		}
	}
}
