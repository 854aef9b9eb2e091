package group

import (
	"context"
	"testing"

	"github.com/groupgraph/groupgraph/internal/entities"
	"github.com/groupgraph/groupgraph/internal/repositories/memstore"
	"github.com/groupgraph/groupgraph/internal/services/relation"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	ms, err := memstore.New()
	if err != nil {
		t.Fatalf("failed to create memstore: %v", err)
	}

	records := memstore.NewMemEntityRepository(ms)
	relations := relation.NewStore(Kinds(), memstore.NewMemRelationRepository(ms), records, nil)
	return NewService(relations, records, nil)
}

func mustMake(t *testing.T, svc *Service, ownerID string, spec GroupSpec, unique bool) *entities.Group {
	t.Helper()
	resp, err := svc.Make(context.Background(), &MakeRequest{OwnerID: ownerID, Group: spec, Unique: unique})
	if err != nil {
		t.Fatalf("Make() error = %v", err)
	}
	return resp.Group
}

func TestService_MakeAndList(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	made := mustMake(t, svc, "o0", GroupSpec{Name: "Group One", Code: "standard"}, false)
	if made.ID == "" {
		t.Fatal("Make() did not assign a group ID")
	}

	resp, err := svc.ListGroups(ctx, &ListGroupsRequest{OwnerID: "o0"})
	if err != nil {
		t.Fatalf("ListGroups() error = %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("ListGroups() returned %d groups, want 1", len(resp.Items))
	}
	if resp.Items[0].Code != "standard" {
		t.Errorf("group code = %q, want %q", resp.Items[0].Code, "standard")
	}
	if resp.Items[0].Name != "Group One" {
		t.Errorf("group name = %q, want %q", resp.Items[0].Name, "Group One")
	}
	if resp.Items[0].SV != entities.GroupSchemaVersion {
		t.Errorf("group sv = %d, want %d", resp.Items[0].SV, entities.GroupSchemaVersion)
	}
}

func TestService_MakeUniqueIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first := mustMake(t, svc, "o1", GroupSpec{Name: "Billing", Code: "billing"}, true)

	resp, err := svc.Make(ctx, &MakeRequest{
		OwnerID: "o1",
		Group:   GroupSpec{Name: "Billing Again", Code: "billing"},
		Unique:  true,
	})
	if err != nil {
		t.Fatalf("Make() error = %v", err)
	}
	if !resp.Existed {
		t.Error("second unique Make() Existed = false, want true")
	}
	if resp.Group.ID != first.ID {
		t.Errorf("second unique Make() returned group %q, want %q", resp.Group.ID, first.ID)
	}
	if resp.Group.Name != "Billing" {
		t.Errorf("existing group name = %q, want unchanged %q", resp.Group.Name, "Billing")
	}

	groups, err := svc.ListGroups(ctx, &ListGroupsRequest{OwnerID: "o1"})
	if err != nil {
		t.Fatalf("ListGroups() error = %v", err)
	}
	if len(groups.Items) != 1 {
		t.Errorf("ListGroups() returned %d groups, want 1 after idempotent make", len(groups.Items))
	}
}

func TestService_MakeNonUniqueCoexists(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first := mustMake(t, svc, "o1", GroupSpec{Name: "A", Code: "dup"}, false)
	second := mustMake(t, svc, "o1", GroupSpec{Name: "B", Code: "dup"}, false)

	if first.ID == second.ID {
		t.Error("non-unique Make() reused a group, want two distinct groups")
	}

	groups, err := svc.ListGroups(ctx, &ListGroupsRequest{OwnerID: "o1", Code: "dup"})
	if err != nil {
		t.Fatalf("ListGroups() error = %v", err)
	}
	if len(groups.Items) != 2 {
		t.Errorf("ListGroups() returned %d groups, want 2 coexisting", len(groups.Items))
	}
}

func TestService_AmendIdentityImmutable(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	grp := mustMake(t, svc, "o1", GroupSpec{Name: "Original", Code: "keep"}, true)

	resp, err := svc.Amend(ctx, &AmendRequest{
		ID:    grp.ID,
		Group: GroupSpec{Name: "Renamed", Code: "mutated"},
	})
	if err != nil {
		t.Fatalf("Amend() error = %v", err)
	}
	if resp.Group.Name != "Renamed" {
		t.Errorf("amended name = %q, want %q", resp.Group.Name, "Renamed")
	}
	if resp.Group.Code != "keep" {
		t.Errorf("amended code = %q, want identity field unchanged %q", resp.Group.Code, "keep")
	}
	if !resp.Group.Unique {
		t.Error("amended unique flag changed, want identity field unchanged")
	}

	// Still resolvable by the original (owner, code) key
	got, err := svc.Get(ctx, &GetRequest{OwnerID: "o1", Code: "keep"})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Group == nil || got.Group.Name != "Renamed" {
		t.Errorf("Get() by owner/code = %v, want renamed group", got.Group)
	}
}

func TestService_AmendTagFanOut(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	grp := mustMake(t, svc, "o1", GroupSpec{Name: "G", Code: "c", Tags: []string{"old"}}, true)
	if _, err := svc.AddOwner(ctx, &AddOwnerRequest{ID: grp.ID, OwnerID: "o2"}); err != nil {
		t.Fatalf("AddOwner() error = %v", err)
	}

	if _, err := svc.Amend(ctx, &AmendRequest{ID: grp.ID, Group: GroupSpec{Tags: []string{"new", "extra"}}}); err != nil {
		t.Fatalf("Amend() error = %v", err)
	}

	owners, err := svc.ListOwners(ctx, &ListOwnersRequest{ID: grp.ID, Shape: relation.ShapeEdge})
	if err != nil {
		t.Fatalf("ListOwners() error = %v", err)
	}
	if len(owners.Items) != 2 {
		t.Fatalf("ListOwners() returned %d owners, want 2", len(owners.Items))
	}
	for _, o := range owners.Items {
		if len(o.Edge.Tags) != 2 || o.Edge.Tags[0] != "new" || o.Edge.Tags[1] != "extra" {
			t.Errorf("owner %s edge tags = %v, want propagated [new extra]", o.ID, o.Edge.Tags)
		}
	}
}

func TestService_AmendRemove(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	grp := mustMake(t, svc, "o1", GroupSpec{Name: "Doomed", Code: "d"}, true)
	if _, err := svc.AddOwner(ctx, &AddOwnerRequest{ID: grp.ID, OwnerID: "o2"}); err != nil {
		t.Fatalf("AddOwner() error = %v", err)
	}

	resp, err := svc.Amend(ctx, &AmendRequest{ID: grp.ID, Remove: true})
	if err != nil {
		t.Fatalf("Amend(remove) error = %v", err)
	}
	if resp.Group == nil || resp.Group.ID != grp.ID {
		t.Fatalf("Amend(remove) group = %v, want the removed group", resp.Group)
	}

	got, err := svc.Get(ctx, &GetRequest{ID: grp.ID})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Group != nil {
		t.Error("group entity still loads after remove")
	}

	for _, ownerID := range []string{"o1", "o2"} {
		groups, err := svc.ListGroups(ctx, &ListGroupsRequest{OwnerID: ownerID})
		if err != nil {
			t.Fatalf("ListGroups() error = %v", err)
		}
		if len(groups.Items) != 0 {
			t.Errorf("owner %s still lists %d groups after remove, want 0", ownerID, len(groups.Items))
		}
	}
}

func TestService_AmendUnresolvedIsNoOp(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.Amend(context.Background(), &AmendRequest{
		OwnerID: "o9",
		Code:    "missing",
		Group:   GroupSpec{Name: "X"},
	})
	if err != nil {
		t.Fatalf("Amend() error = %v", err)
	}
	if resp.Group != nil {
		t.Errorf("Amend() on missing group = %v, want nil group", resp.Group)
	}
}

func TestService_MultiOwner(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	g3 := mustMake(t, svc, "o1", GroupSpec{Name: "Group Three", Code: "shared"}, true)

	added, err := svc.AddOwner(ctx, &AddOwnerRequest{ID: g3.ID, OwnerID: "o2"})
	if err != nil {
		t.Fatalf("AddOwner() error = %v", err)
	}
	if !added.Added {
		t.Error("AddOwner() Added = false, want true")
	}

	// Re-adding the same owner is a no-op
	again, err := svc.AddOwner(ctx, &AddOwnerRequest{ID: g3.ID, OwnerID: "o2"})
	if err != nil {
		t.Fatalf("AddOwner() error = %v", err)
	}
	if again.Added {
		t.Error("repeated AddOwner() Added = true, want false")
	}

	owners, err := svc.ListOwners(ctx, &ListOwnersRequest{ID: g3.ID})
	if err != nil {
		t.Fatalf("ListOwners() error = %v", err)
	}
	wantOwners := []string{"o1", "o2"}
	if len(owners.Items) != len(wantOwners) {
		t.Fatalf("ListOwners() returned %d owners, want %d", len(owners.Items), len(wantOwners))
	}
	for i, id := range wantOwners {
		if owners.Items[i].ID != id {
			t.Errorf("owners[%d] = %q, want %q (insertion order)", i, owners.Items[i].ID, id)
		}
	}

	// Removing one owner leaves the other's view intact
	if _, err := svc.RemoveOwner(ctx, &RemoveOwnerRequest{ID: g3.ID, OwnerID: "o1"}); err != nil {
		t.Fatalf("RemoveOwner() error = %v", err)
	}

	o1Groups, err := svc.ListGroups(ctx, &ListGroupsRequest{OwnerID: "o1"})
	if err != nil {
		t.Fatalf("ListGroups() error = %v", err)
	}
	if len(o1Groups.Items) != 0 {
		t.Errorf("o1 lists %d groups after disowning, want 0", len(o1Groups.Items))
	}

	o2Groups, err := svc.ListGroups(ctx, &ListGroupsRequest{OwnerID: "o2"})
	if err != nil {
		t.Fatalf("ListGroups() error = %v", err)
	}
	if len(o2Groups.Items) != 1 || o2Groups.Items[0].ID != g3.ID {
		t.Errorf("o2 groups = %v, want just %s", o2Groups.Items, g3.ID)
	}
}

func TestService_UserMembership(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	grp := mustMake(t, svc, "o1", GroupSpec{Name: "G", Code: "g"}, true)

	edge, err := svc.AddUser(ctx, &AddUserRequest{UserID: "u1", GroupID: grp.ID, Tags: []string{"member"}})
	if err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}
	if edge.ParentID != grp.ID || edge.ChildID != "u1" {
		t.Errorf("AddUser() edge = %v, want group->user", edge)
	}

	users, err := svc.ListUsers(ctx, &ListUsersRequest{GroupID: grp.ID})
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users.Items) != 1 || users.Items[0].ID != "u1" {
		t.Fatalf("ListUsers() = %v, want [u1]", users.Items)
	}

	removed, err := svc.RemoveUser(ctx, &RemoveUserRequest{UserID: "u1", GroupID: grp.ID})
	if err != nil {
		t.Fatalf("RemoveUser() error = %v", err)
	}
	if removed.Member == nil || removed.Member.ID != edge.ID {
		t.Errorf("RemoveUser() member = %v, want the removed edge", removed.Member)
	}

	// Removing a non-member reports nil without error
	removed, err = svc.RemoveUser(ctx, &RemoveUserRequest{UserID: "u1", GroupID: grp.ID})
	if err != nil {
		t.Fatalf("RemoveUser() error = %v", err)
	}
	if removed.Member != nil {
		t.Errorf("RemoveUser() on non-member = %v, want nil", removed.Member)
	}
}

func TestService_ListUserGroupsOwnerFilter(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	g1 := mustMake(t, svc, "o0", GroupSpec{Name: "Group One", Code: "standard"}, true)
	g3 := mustMake(t, svc, "o1", GroupSpec{Name: "Group Three", Code: "shared"}, true)
	if _, err := svc.AddOwner(ctx, &AddOwnerRequest{ID: g3.ID, OwnerID: "o2"}); err != nil {
		t.Fatalf("AddOwner() error = %v", err)
	}

	for _, groupID := range []string{g1.ID, g3.ID} {
		if _, err := svc.AddUser(ctx, &AddUserRequest{UserID: "u1", GroupID: groupID}); err != nil {
			t.Fatalf("AddUser() error = %v", err)
		}
	}

	t.Run("unfiltered lists all memberships", func(t *testing.T) {
		resp, err := svc.ListUserGroups(ctx, &ListUserGroupsRequest{UserID: "u1"})
		if err != nil {
			t.Fatalf("ListUserGroups() error = %v", err)
		}
		if len(resp.Items) != 2 {
			t.Fatalf("ListUserGroups() returned %d groups, want 2", len(resp.Items))
		}
		if resp.Items[0].ID != g1.ID || resp.Items[1].ID != g3.ID {
			t.Errorf("groups = [%s %s], want membership order [%s %s]",
				resp.Items[0].ID, resp.Items[1].ID, g1.ID, g3.ID)
		}
	})

	t.Run("owner filter excludes unowned groups", func(t *testing.T) {
		resp, err := svc.ListUserGroups(ctx, &ListUserGroupsRequest{UserID: "u1", OwnerID: "o0"})
		if err != nil {
			t.Fatalf("ListUserGroups() error = %v", err)
		}
		if len(resp.Items) != 1 || resp.Items[0].ID != g1.ID {
			t.Errorf("ListUserGroups(owner o0) = %v, want just %s", resp.Items, g1.ID)
		}
	})

	t.Run("second owner sees the shared group", func(t *testing.T) {
		resp, err := svc.ListUserGroups(ctx, &ListUserGroupsRequest{UserID: "u1", OwnerID: "o2"})
		if err != nil {
			t.Fatalf("ListUserGroups() error = %v", err)
		}
		if len(resp.Items) != 1 || resp.Items[0].ID != g3.ID {
			t.Errorf("ListUserGroups(owner o2) = %v, want just %s", resp.Items, g3.ID)
		}
	})
}

func TestService_CheckMembership(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	grp := mustMake(t, svc, "o1", GroupSpec{Name: "G", Code: "vip"}, true)
	if _, err := svc.AddUser(ctx, &AddUserRequest{UserID: "u1", GroupID: grp.ID}); err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}

	t.Run("by group id", func(t *testing.T) {
		resp, err := svc.CheckMembership(ctx, &CheckMembershipRequest{UserID: "u1", GroupID: grp.ID})
		if err != nil {
			t.Fatalf("CheckMembership() error = %v", err)
		}
		if resp.Member == nil {
			t.Error("CheckMembership() member = nil, want edge")
		}
	})

	t.Run("by owner code resolution", func(t *testing.T) {
		resp, err := svc.CheckMembership(ctx, &CheckMembershipRequest{UserID: "u1", OwnerID: "o1", OwnerCode: "vip"})
		if err != nil {
			t.Fatalf("CheckMembership() error = %v", err)
		}
		if resp.GroupID != grp.ID {
			t.Errorf("resolved group = %q, want %q", resp.GroupID, grp.ID)
		}
		if resp.Member == nil {
			t.Error("CheckMembership() member = nil, want edge")
		}
	})

	t.Run("non-member", func(t *testing.T) {
		resp, err := svc.CheckMembership(ctx, &CheckMembershipRequest{UserID: "u2", GroupID: grp.ID})
		if err != nil {
			t.Fatalf("CheckMembership() error = %v", err)
		}
		if resp.Member != nil {
			t.Errorf("CheckMembership() member = %v, want nil", resp.Member)
		}
	})

	t.Run("unresolvable group", func(t *testing.T) {
		resp, err := svc.CheckMembership(ctx, &CheckMembershipRequest{UserID: "u1", OwnerID: "o1", OwnerCode: "none"})
		if err != nil {
			t.Fatalf("CheckMembership() error = %v", err)
		}
		if resp.GroupID != "" || resp.Member != nil {
			t.Errorf("CheckMembership() = %+v, want empty resolution", resp)
		}
	})
}

func TestService_GetWithOwners(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	grp := mustMake(t, svc, "o1", GroupSpec{Name: "G", Code: "g"}, true)
	if _, err := svc.AddOwner(ctx, &AddOwnerRequest{ID: grp.ID, OwnerID: "o2"}); err != nil {
		t.Fatalf("AddOwner() error = %v", err)
	}

	resp, err := svc.Get(ctx, &GetRequest{ID: grp.ID, Owners: true})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.Group == nil || resp.Group.ID != grp.ID {
		t.Fatalf("Get() group = %v, want %s", resp.Group, grp.ID)
	}
	if len(resp.Owners) != 2 || resp.Owners[0].ID != "o1" || resp.Owners[1].ID != "o2" {
		t.Errorf("Get() owners = %v, want [o1 o2]", resp.Owners)
	}
}

func TestService_RemoveOwnerWithoutOwnerID(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.RemoveOwner(context.Background(), &RemoveOwnerRequest{ID: "g1"})
	if err != nil {
		t.Fatalf("RemoveOwner() error = %v", err)
	}
	if resp.ID != "g1" || resp.OwnerID != "" {
		t.Errorf("RemoveOwner() = %+v, want echoed ids", resp)
	}
}
