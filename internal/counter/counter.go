package counter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tradeledger/internal/ports"
	"tradeledger/internal/repository"
)

// Type identifies which record type a counter allocates ids for.
type Type int

const (
	Position Type = iota
	Price
	Pnl
)

func (t Type) String() string {
	switch t {
	case Position:
		return "position"
	case Price:
		return "price"
	case Pnl:
		return "pnl"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Counter allocates monotonically increasing ids. It is safe for concurrent use.
type Counter struct {
	typ Type
	max uint32 // 0 means unbounded

	mu     sync.Mutex
	cursor uint32 // last id handed out or found in the store
}

// New returns a counter whose next id is start+1.
func New(t Type, start, max uint32) *Counter {
	return &Counter{typ: t, cursor: start, max: max}
}

// Type returns the record type the counter serves.
func (c *Counter) Type() Type { return c.typ }

// Max returns the configured ceiling, 0 when unbounded.
func (c *Counter) Max() uint32 { return c.max }

// Increment advances the counter and returns the new id. Once the next id would
// exceed the configured maximum it fails with ports.ErrCounterExhausted and the
// cursor stays put.
func (c *Counter) Increment() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cursor == ^uint32(0) || (c.max != 0 && c.cursor >= c.max) {
		return 0, fmt.Errorf("%s counter at %d (max %d): %w", c.typ, c.cursor, c.max, ports.ErrCounterExhausted)
	}
	c.cursor++
	return c.cursor, nil
}

// Current returns the last allocated id without advancing.
func (c *Counter) Current() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// Recover builds a counter seeded from the largest id stored through repo.
// An empty collection seeds the counter at 0.
func Recover[T repository.Record](ctx context.Context, db ports.Database, repo *repository.Repository[T], t Type, max uint32) (*Counter, error) {
	recs, err := repo.Search(ctx, db, repository.Query{Mode: repository.Descending, SortKey: "id", Limit: 1})
	if errors.Is(err, ports.ErrNotFound) {
		return New(t, 0, max), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to recover %s counter: %w", t, err)
	}
	return New(t, recs[0].RecordID(), max), nil
}

// Limits holds the configured maximum per counter type.
type Limits struct {
	Position uint32
	Price    uint32
	Pnl      uint32
}

// Set groups the counters of every record type.
type Set struct {
	counters map[Type]*Counter
}

// RecoverSet recovers the position, price and pnl counters from db.
func RecoverSet(ctx context.Context, db ports.Database, repos *repository.Repositories, limits Limits) (*Set, error) {
	position, err := Recover(ctx, db, repos.Positions, Position, limits.Position)
	if err != nil {
		return nil, err
	}
	price, err := Recover(ctx, db, repos.Prices, Price, limits.Price)
	if err != nil {
		return nil, err
	}
	pnl, err := Recover(ctx, db, repos.PnLs, Pnl, limits.Pnl)
	if err != nil {
		return nil, err
	}
	return NewSet(position, price, pnl), nil
}

// NewSet groups already built counters.
func NewSet(counters ...*Counter) *Set {
	s := &Set{counters: make(map[Type]*Counter, len(counters))}
	for _, c := range counters {
		s.counters[c.Type()] = c
	}
	return s
}

// Get returns the counter for t.
func (s *Set) Get(t Type) (*Counter, error) {
	c, ok := s.counters[t]
	if !ok {
		return nil, fmt.Errorf("no counter for %s: %w", t, ports.ErrUnsupported)
	}
	return c, nil
}

// Increment advances the counter for t.
func (s *Set) Increment(t Type) (uint32, error) {
	c, err := s.Get(t)
	if err != nil {
		return 0, err
	}
	return c.Increment()
}

// Snapshot returns the current value of every counter, keyed by type name.
func (s *Set) Snapshot() map[string]interface{} {
	out := make(map[string]interface{}, len(s.counters))
	for t, c := range s.counters {
		out[t.String()+"_counter"] = c.Current()
	}
	return out
}
