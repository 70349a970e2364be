package ports

import (
	"context"
	"encoding/json"
)

// Document is a single JSON-encoded record as exchanged with a document store.
type Document = json.RawMessage

// Operator is a comparison used by a filter condition.
type Operator int

const (
	OpEq Operator = iota
	OpGt
)

// Condition compares one (possibly dotted) document field against a value.
type Condition struct {
	Field string
	Op    Operator
	Value interface{}
}

// Eq builds an equality condition.
func Eq(field string, value interface{}) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

// Gt builds a strictly-greater-than condition.
func Gt(field string, value interface{}) Condition {
	return Condition{Field: field, Op: OpGt, Value: value}
}

// Filter is a conjunction of conditions. An empty filter matches every document.
type Filter []Condition

// With returns a copy of f in which any condition on c.Field is replaced by c.
func (f Filter) With(c Condition) Filter {
	out := make(Filter, 0, len(f)+1)
	for _, existing := range f {
		if existing.Field != c.Field {
			out = append(out, existing)
		}
	}
	return append(out, c)
}

// SortOrder is the direction of a sort or an index key. Zero means unsorted.
type SortOrder int

const (
	Ascending  SortOrder = 1
	Descending SortOrder = -1
)

// FindOptions controls ordering and pagination of a Find call.
type FindOptions struct {
	SortField    string
	SortOrder    SortOrder
	Limit        int64 // 0 means no limit
	AllowDiskUse bool  // let the engine spill large sorts to disk
}

// IndexModel declares a single-field index.
type IndexModel struct {
	Name   string
	Field  string
	Order  SortOrder
	Unique bool
}

// Collection is a named set of documents inside one logical database.
type Collection interface {
	Name() string
	// InsertOne writes a new document. Unique index violations wrap ErrDuplicateKey.
	InsertOne(ctx context.Context, doc Document) error
	// Find returns every document matching filter, ordered and limited by opts.
	Find(ctx context.Context, filter Filter, opts FindOptions) ([]Document, error)
	// FindOne returns the first document matching filter or ErrNotFound.
	FindOne(ctx context.Context, filter Filter) (Document, error)
	// FindOneAndUpsert sets every top-level field of doc on the document matching
	// filter, inserting it when absent, and returns the document after the change.
	FindOneAndUpsert(ctx context.Context, filter Filter, doc Document) (Document, error)
	// DeleteOne removes at most one matching document and reports how many were removed.
	DeleteOne(ctx context.Context, filter Filter) (int64, error)
	// Drop removes the collection together with its indexes.
	Drop(ctx context.Context) error
	// IndexNames lists the names of the indexes currently defined on the collection.
	IndexNames(ctx context.Context) ([]string, error)
	// CreateIndex creates the index described by model.
	CreateIndex(ctx context.Context, model IndexModel) error
}

// Database is a handle on one logical database.
type Database interface {
	Name() string
	Collection(name string) Collection
}

// Client is a live connection to a document store server or file.
type Client interface {
	Database(name string) Database
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Connector dials a new Client. Implementations hold the parsed connection settings.
type Connector interface {
	Connect(ctx context.Context) (Client, error)
}
