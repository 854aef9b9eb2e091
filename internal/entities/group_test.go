package entities

import "testing"

func TestGroup_RecordRoundTrip(t *testing.T) {
	grp := &Group{
		ID:     "g1",
		Name:   "Group One",
		Code:   "standard",
		Tags:   []string{"blue", "green"},
		Unique: true,
		SV:     GroupSchemaVersion,
	}

	got := GroupFromRecord(grp.Record())

	if got.ID != grp.ID || got.Name != grp.Name || got.Code != grp.Code {
		t.Errorf("round trip = %+v, want %+v", got, grp)
	}
	if !got.Unique {
		t.Error("unique flag lost in round trip")
	}
	if got.SV != GroupSchemaVersion {
		t.Errorf("sv = %d, want %d", got.SV, GroupSchemaVersion)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "blue" || got.Tags[1] != "green" {
		t.Errorf("tags = %v, want [blue green]", got.Tags)
	}
}

func TestGroupFromRecord_JSONDecodedFields(t *testing.T) {
	// JSONB round trips yield float64 numbers and []any slices
	rec := &Record{
		ID: "g1",
		Fields: map[string]any{
			"name":   "Group One",
			"code":   "standard",
			"tags":   []any{"blue", "green"},
			"unique": true,
			"sv":     float64(1),
		},
	}

	got := GroupFromRecord(rec)

	if got.SV != 1 {
		t.Errorf("sv = %d, want 1", got.SV)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "blue" {
		t.Errorf("tags = %v, want [blue green]", got.Tags)
	}
}

func TestGroupFromRecord_BareRecord(t *testing.T) {
	got := GroupFromRecord(NewRecord("g1"))

	if got == nil {
		t.Fatal("expected a group for a bare record")
	}
	if got.ID != "g1" {
		t.Errorf("id = %q, want %q", got.ID, "g1")
	}
	if got.Name != "" || got.Unique {
		t.Errorf("bare record should yield zero fields, got %+v", got)
	}

	if GroupFromRecord(nil) != nil {
		t.Error("expected nil group for nil record")
	}
}
