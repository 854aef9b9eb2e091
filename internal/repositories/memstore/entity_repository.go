package memstore

import (
	"context"
	"fmt"

	"github.com/groupgraph/groupgraph/internal/entities"
	"github.com/groupgraph/groupgraph/internal/repositories"
	"github.com/hashicorp/go-memdb"
)

// MemEntityRepository implements EntityRepository on a memstore
type MemEntityRepository struct {
	store *Store
}

// NewMemEntityRepository creates an in-memory entity repository
func NewMemEntityRepository(store *Store) repositories.EntityRepository {
	return &MemEntityRepository{store: store}
}

// Load retrieves the first record matching the filter, or nil if none
func (r *MemEntityRepository) Load(ctx context.Context, collection string, filter *repositories.RecordFilter) (*entities.Record, error) {
	txn := r.store.db.Txn(false)
	defer txn.Abort()

	row, err := loadRow(txn, collection, filter)
	if err != nil {
		return nil, err
	}

	return rowToRecord(row), nil
}

// LoadMany retrieves the records with the given IDs in a single transaction
func (r *MemEntityRepository) LoadMany(ctx context.Context, collection string, ids []string) (map[string]*entities.Record, error) {
	records := make(map[string]*entities.Record, len(ids))

	txn := r.store.db.Txn(false)
	defer txn.Abort()

	for _, id := range ids {
		obj, err := txn.First(recordTable, "id", recordKey(collection, id))
		if err != nil {
			return nil, fmt.Errorf("failed to load record: %w", err)
		}
		if obj != nil {
			rec := rowToRecord(obj.(*recordRow))
			records[rec.ID] = rec
		}
	}

	return records, nil
}

// Save upserts a record and returns the stored version
func (r *MemEntityRepository) Save(ctx context.Context, collection string, rec *entities.Record) (*entities.Record, error) {
	if rec == nil || rec.ID == "" {
		return nil, fmt.Errorf("record ID is required")
	}

	stored := rec.Clone()
	row := &recordRow{
		Key:        recordKey(collection, stored.ID),
		Collection: collection,
		ID:         stored.ID,
		Fields:     stored.Fields,
	}

	txn := r.store.db.Txn(true)
	if err := txn.Insert(recordTable, row); err != nil {
		txn.Abort()
		return nil, fmt.Errorf("failed to save record: %w", err)
	}
	txn.Commit()

	return stored.Clone(), nil
}

// Remove deletes the first record matching the filter and returns it
func (r *MemEntityRepository) Remove(ctx context.Context, collection string, filter *repositories.RecordFilter) (*entities.Record, error) {
	txn := r.store.db.Txn(true)
	defer txn.Abort()

	row, err := loadRow(txn, collection, filter)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}

	if err := txn.Delete(recordTable, row); err != nil {
		return nil, fmt.Errorf("failed to remove record: %w", err)
	}
	txn.Commit()

	return rowToRecord(row), nil
}

func loadRow(txn *memdb.Txn, collection string, filter *repositories.RecordFilter) (*recordRow, error) {
	if filter != nil && filter.ID != "" {
		obj, err := txn.First(recordTable, "id", recordKey(collection, filter.ID))
		if err != nil {
			return nil, fmt.Errorf("failed to load record: %w", err)
		}
		if obj == nil {
			return nil, nil
		}
		row := obj.(*recordRow)
		if !fieldsMatch(row, filter) {
			return nil, nil
		}
		return row, nil
	}

	it, err := txn.Get(recordTable, "collection", collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		row := obj.(*recordRow)
		if fieldsMatch(row, filter) {
			return row, nil
		}
	}

	return nil, nil
}

func fieldsMatch(row *recordRow, filter *repositories.RecordFilter) bool {
	if filter == nil {
		return true
	}
	for key, want := range filter.Fields {
		got, ok := row.Fields[key].(string)
		if !ok || got != want {
			return false
		}
	}
	return true
}

func rowToRecord(row *recordRow) *entities.Record {
	if row == nil {
		return nil
	}
	rec := &entities.Record{ID: row.ID, Fields: row.Fields}
	return rec.Clone()
}
