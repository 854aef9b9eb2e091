// Package memstore provides in-memory implementations of the repository
// interfaces backed by hashicorp/go-memdb. It is used by the unit tests and
// as an embedded backend for demos and single-process deployments; data does
// not survive a restart.
package memstore

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-memdb"
)

const (
	edgeTable   = "edge"
	recordTable = "record"
)

// edgeRow is the memdb representation of an edge. Seq is a process-local
// monotonic counter preserving insertion order.
type edgeRow struct {
	ID        string
	Kind      string
	ParentID  string
	ChildID   string
	Code      string
	Tags      []string
	Seq       uint64
	CreatedAt time.Time
}

// recordRow is the memdb representation of an entity record
type recordRow struct {
	Key        string // Collection + "/" + ID, the unique primary key
	Collection string
	ID         string
	Fields     map[string]any
}

// Store wraps a go-memdb database holding edges and entity records
type Store struct {
	db  *memdb.MemDB
	seq uint64
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			edgeTable: {
				Name: edgeTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"parent": {
						Name: "parent",
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "Kind"},
								&memdb.StringFieldIndex{Field: "ParentID"},
							},
						},
					},
					"child": {
						Name: "child",
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "Kind"},
								&memdb.StringFieldIndex{Field: "ChildID"},
							},
						},
					},
				},
			},
			recordTable: {
				Name: recordTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Key"},
					},
					"collection": {
						Name:    "collection",
						Indexer: &memdb.StringFieldIndex{Field: "Collection"},
					},
				},
			},
		},
	}
}

// New creates an empty in-memory store
func New() (*Store, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) nextSeq() uint64 {
	return atomic.AddUint64(&s.seq, 1)
}

func recordKey(collection, id string) string {
	return collection + "/" + id
}
