package repository

import (
	"context"
	"fmt"

	"tradeledger/internal/ports"
)

// SearchMode selects how Search scans a collection.
type SearchMode int

const (
	Ascending SearchMode = iota
	Descending
	ByID
)

func (m SearchMode) String() string {
	switch m {
	case Ascending:
		return "ascending"
	case Descending:
		return "descending"
	case ByID:
		return "by_id"
	default:
		return fmt.Sprintf("SearchMode(%d)", int(m))
	}
}

// Query parameterizes a search.
type Query struct {
	Mode    SearchMode
	SortKey string // ignored for ByID
	Limit   int64  // 0 means unbounded; ignored for ByID
	ID      uint32 // required for ByID
}

// DefaultSortKeys are the document fields a scan may be ordered by.
var DefaultSortKeys = []string{"id", "open_timestamp", "price_point.timestamp"}

// Engine executes searches, upserts and deletes against a single collection.
// It knows nothing about record types; callers hand it documents and filters.
type Engine struct {
	sortKeys map[string]struct{}
}

// NewEngine returns an engine accepting the given sort keys, or DefaultSortKeys
// when none are given.
func NewEngine(sortKeys ...string) *Engine {
	if len(sortKeys) == 0 {
		sortKeys = DefaultSortKeys
	}
	e := &Engine{sortKeys: make(map[string]struct{}, len(sortKeys))}
	for _, k := range sortKeys {
		e.sortKeys[k] = struct{}{}
	}
	return e
}

// ValidSortKey reports whether key is on the engine's allow-list.
func (e *Engine) ValidSortKey(key string) bool {
	_, ok := e.sortKeys[key]
	return ok
}

// Search runs q against coll, narrowed by filter. An empty result is ports.ErrNotFound.
func (e *Engine) Search(ctx context.Context, coll ports.Collection, filter ports.Filter, q Query) ([]ports.Document, error) {
	var opts ports.FindOptions
	switch q.Mode {
	case ByID:
		if q.ID == 0 {
			return nil, ports.ErrMissingIdentifier
		}
		filter = filter.With(ports.Eq("id", q.ID))
	case Ascending, Descending:
		if !e.ValidSortKey(q.SortKey) {
			return nil, fmt.Errorf("%q: %w", q.SortKey, ports.ErrInvalidSortKey)
		}
		opts = ports.FindOptions{
			SortField:    q.SortKey,
			SortOrder:    ports.Ascending,
			Limit:        q.Limit,
			AllowDiskUse: true,
		}
		if q.Mode == Descending {
			opts.SortOrder = ports.Descending
		}
	default:
		return nil, fmt.Errorf("unknown search mode %v", q.Mode)
	}

	docs, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ports.ErrNotFound
	}
	return docs, nil
}

// Insert writes doc as a new document.
func (e *Engine) Insert(ctx context.Context, coll ports.Collection, doc ports.Document) error {
	return coll.InsertOne(ctx, doc)
}

// Upsert sets the top-level fields of doc on the document matching filter,
// inserting when absent, and returns the document after the change.
func (e *Engine) Upsert(ctx context.Context, coll ports.Collection, filter ports.Filter, doc ports.Document) (ports.Document, error) {
	return coll.FindOneAndUpsert(ctx, filter, doc)
}

// Delete removes the single document matching filter. Anything other than
// exactly one removed document is ports.ErrDeleteAnomaly.
func (e *Engine) Delete(ctx context.Context, coll ports.Collection, filter ports.Filter) error {
	n, err := coll.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("deleted %d documents: %w", n, ports.ErrDeleteAnomaly)
	}
	return nil
}

// Drop removes every document of coll together with its indexes.
func (e *Engine) Drop(ctx context.Context, coll ports.Collection) error {
	return coll.Drop(ctx)
}
