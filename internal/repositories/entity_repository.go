package repositories

import (
	"context"

	"github.com/groupgraph/groupgraph/internal/entities"
)

// RecordFilter defines filter criteria for loading or removing entity
// records. ID takes precedence; Fields matches on stored field values.
type RecordFilter struct {
	ID     string            // Match by record ID (optional)
	Fields map[string]string // Match by field equality (optional)
}

// EntityRepository defines the interface for generic entity record access.
// Records live in named collections ("groups", "users", "owners"); the
// group service only ever writes to "groups", the other collections are
// externally owned and may be empty.
type EntityRepository interface {
	// Load retrieves the first record matching the filter, or nil if none
	Load(ctx context.Context, collection string, filter *RecordFilter) (*entities.Record, error)

	// LoadMany retrieves the records with the given IDs in a single round
	// trip. IDs with no stored record are absent from the result map.
	LoadMany(ctx context.Context, collection string, ids []string) (map[string]*entities.Record, error)

	// Save upserts a record and returns the stored version
	Save(ctx context.Context, collection string, rec *entities.Record) (*entities.Record, error)

	// Remove deletes the first record matching the filter and returns it,
	// or nil if no record matched
	Remove(ctx context.Context, collection string, filter *RecordFilter) (*entities.Record, error)
}
