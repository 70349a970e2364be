package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tradeledger/internal/ports"
)

// Record is implemented by every persisted type. RecordID returns 0 while the
// record has not been assigned an identifier yet.
type Record interface {
	RecordID() uint32
}

// Operation is a bit set of repository operations a record type supports.
type Operation uint8

const (
	OpInsert Operation = 1 << iota
	OpUpdate
	OpDelete
	OpDeleteAll
	OpSearch
)

var operationNames = map[Operation]string{
	OpInsert:    "insert",
	OpUpdate:    "update",
	OpDelete:    "delete",
	OpDeleteAll: "delete_all",
	OpSearch:    "search",
}

func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Operation(%d)", uint8(o))
}

// Descriptor tells a Repository where and how a record type is stored.
type Descriptor struct {
	Collection string
	Supported  Operation
	Indexes    []ports.IndexModel
	// SingletonID, when non-zero, pins the base filter to that id instead of id > 0.
	SingletonID uint32
}

func (d Descriptor) supports(op Operation) bool { return d.Supported&op != 0 }

func (d Descriptor) baseFilter() ports.Filter {
	if d.SingletonID != 0 {
		return ports.Filter{ports.Eq("id", d.SingletonID)}
	}
	return ports.Filter{ports.Gt("id", 0)}
}

// Repository stores records of type T in the collection named by its descriptor.
// Every method takes the database to act on, so one repository serves both the
// read and the write database.
type Repository[T Record] struct {
	desc   Descriptor
	engine *Engine
}

// New returns a repository for T described by desc.
func New[T Record](desc Descriptor, engine *Engine) *Repository[T] {
	return &Repository[T]{desc: desc, engine: engine}
}

// CollectionName returns the name of the backing collection.
func (r *Repository[T]) CollectionName() string { return r.desc.Collection }

// Descriptor returns the descriptor the repository was built with.
func (r *Repository[T]) Descriptor() Descriptor { return r.desc }

func (r *Repository[T]) check(op Operation) error {
	if !r.desc.supports(op) {
		return opError(op.String(), r.desc.Collection, ports.ErrUnsupported)
	}
	return nil
}

// Insert writes rec as a new document. rec must carry an identifier.
func (r *Repository[T]) Insert(ctx context.Context, db ports.Database, rec T) error {
	if err := r.check(OpInsert); err != nil {
		return err
	}
	if rec.RecordID() == 0 {
		return opError(OpInsert.String(), r.desc.Collection, ports.ErrMissingIdentifier)
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return opError(OpInsert.String(), r.desc.Collection, fmt.Errorf("failed to encode record: %w", err))
	}
	coll := db.Collection(r.desc.Collection)
	return opError(OpInsert.String(), r.desc.Collection, r.engine.Insert(ctx, coll, doc))
}

// Update replaces the top-level fields of the record with rec's id, inserting
// it when absent, and returns the stored record.
func (r *Repository[T]) Update(ctx context.Context, db ports.Database, rec T) (T, error) {
	var zero T
	if err := r.check(OpUpdate); err != nil {
		return zero, err
	}
	id := rec.RecordID()
	if id == 0 {
		return zero, opError(OpUpdate.String(), r.desc.Collection, ports.ErrMissingIdentifier)
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return zero, opError(OpUpdate.String(), r.desc.Collection, fmt.Errorf("failed to encode record: %w", err))
	}

	coll := db.Collection(r.desc.Collection)
	stored, err := r.engine.Upsert(ctx, coll, ports.Filter{ports.Eq("id", id)}, doc)
	if err != nil {
		return zero, opError(OpUpdate.String(), r.desc.Collection, err)
	}
	out, err := decode[T](stored)
	if err != nil {
		return zero, opError(OpUpdate.String(), r.desc.Collection, err)
	}
	return out, nil
}

// Delete removes the record with rec's id. Exactly one document must go away.
func (r *Repository[T]) Delete(ctx context.Context, db ports.Database, rec T) error {
	if err := r.check(OpDelete); err != nil {
		return err
	}
	id := rec.RecordID()
	if id == 0 {
		return opError(OpDelete.String(), r.desc.Collection, ports.ErrMissingIdentifier)
	}
	coll := db.Collection(r.desc.Collection)
	return opError(OpDelete.String(), r.desc.Collection, r.engine.Delete(ctx, coll, ports.Filter{ports.Eq("id", id)}))
}

// DeleteAll drops the collection, indexes included.
func (r *Repository[T]) DeleteAll(ctx context.Context, db ports.Database) error {
	if err := r.check(OpDeleteAll); err != nil {
		return err
	}
	coll := db.Collection(r.desc.Collection)
	return opError(OpDeleteAll.String(), r.desc.Collection, r.engine.Drop(ctx, coll))
}

// Search returns the records selected by q. An empty result is ports.ErrNotFound.
func (r *Repository[T]) Search(ctx context.Context, db ports.Database, q Query) ([]T, error) {
	if err := r.check(OpSearch); err != nil {
		return nil, err
	}
	coll := db.Collection(r.desc.Collection)
	docs, err := r.engine.Search(ctx, coll, r.desc.baseFilter(), q)
	if err != nil {
		return nil, opError(OpSearch.String(), r.desc.Collection, err)
	}

	out := make([]T, 0, len(docs))
	for _, d := range docs {
		rec, err := decode[T](d)
		if err != nil {
			return nil, opError(OpSearch.String(), r.desc.Collection, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// SearchOne is Search for callers expecting exactly one record.
func (r *Repository[T]) SearchOne(ctx context.Context, db ports.Database, q Query) (T, error) {
	var zero T
	recs, err := r.Search(ctx, db, q)
	if err != nil {
		return zero, err
	}
	if len(recs) > 1 {
		return zero, opError(OpSearch.String(), r.desc.Collection,
			fmt.Errorf("%d records: %w", len(recs), ports.ErrMultipleResults))
	}
	return recs[0], nil
}

// CreateIndexes reconciles the declared indexes of the record type on db.
func (r *Repository[T]) CreateIndexes(ctx context.Context, db ports.Database) ([]string, error) {
	created, err := ReconcileIndexes(ctx, db.Collection(r.desc.Collection), r.desc.Indexes)
	return created, opError("create_indexes", r.desc.Collection, err)
}

func decode[T any](doc ports.Document) (T, error) {
	var out T
	if err := json.Unmarshal(doc, &out); err != nil {
		return out, fmt.Errorf("%v: %w", err, ports.ErrDecode)
	}
	return out, nil
}

// Singleton is the accessor for a record type with exactly one instance.
type Singleton[T Record] struct {
	repo     *Repository[T]
	fallback func() T
}

// NewSingleton wraps repo. fallback supplies the value returned before anything
// was stored; its RecordID is the singleton's fixed identifier.
func NewSingleton[T Record](repo *Repository[T], fallback func() T) *Singleton[T] {
	return &Singleton[T]{repo: repo, fallback: fallback}
}

// Load returns the stored instance, or the fallback when none exists.
func (s *Singleton[T]) Load(ctx context.Context, db ports.Database) (T, error) {
	def := s.fallback()
	recs, err := s.repo.Search(ctx, db, Query{Mode: ByID, ID: def.RecordID()})
	if errors.Is(err, ports.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return recs[0], nil
}

// Store upserts v under the singleton identifier and returns what was stored.
func (s *Singleton[T]) Store(ctx context.Context, db ports.Database, v T) (T, error) {
	return s.repo.Update(ctx, db, v)
}
