package entities

// GroupSchemaVersion is stamped into every group record on save so that
// later schema revisions can migrate old records lazily.
const GroupSchemaVersion = 1

// Group is a domain entity aggregating users. A group may be owned by more
// than one owner via grpown edges; its users are linked via usrgrp edges.
// Code, Unique and ownership define the group's identity and are immutable
// once set; Name and Tags may be amended.
type Group struct {
	ID     string   // Generated identifier (uuid)
	Name   string   // Display name
	Code   string   // Secondary uniqueness key (optional)
	Tags   []string // Free-form labels
	Unique bool     // True if created under the unique-per-owner-and-code policy
	SV     int      // Schema version marker
}

// Record converts the group to a generic entity record
func (g *Group) Record() *Record {
	fields := map[string]any{
		"name":   g.Name,
		"code":   g.Code,
		"unique": g.Unique,
		"sv":     g.SV,
	}
	if g.Tags != nil {
		fields["tags"] = g.Tags
	}
	return &Record{ID: g.ID, Fields: fields}
}

// GroupFromRecord builds a group from a generic entity record. Missing
// fields are tolerated: a bare record yields a group carrying only its ID.
func GroupFromRecord(rec *Record) *Group {
	if rec == nil {
		return nil
	}
	return &Group{
		ID:     rec.ID,
		Name:   rec.GetString("name"),
		Code:   rec.GetString("code"),
		Tags:   rec.GetStrings("tags"),
		Unique: rec.GetBool("unique"),
		SV:     rec.GetInt("sv"),
	}
}

// Clone returns a deep copy of the group
func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	c := *g
	if g.Tags != nil {
		c.Tags = append([]string(nil), g.Tags...)
	}
	return &c
}
