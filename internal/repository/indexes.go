package repository

import (
	"context"
	"fmt"

	"tradeledger/internal/ports"
)

// IndexOn declares a single-field index named after the driver convention
// "<field>_<order>", e.g. "id_1" or "open_timestamp_-1".
func IndexOn(field string, order ports.SortOrder, unique bool) ports.IndexModel {
	return ports.IndexModel{
		Name:   fmt.Sprintf("%s_%d", field, int(order)),
		Field:  field,
		Order:  order,
		Unique: unique,
	}
}

// ReconcileIndexes creates the declared indexes missing from coll and returns
// the names it created. Existing indexes are left untouched, even when their
// definition differs from the declaration.
func ReconcileIndexes(ctx context.Context, coll ports.Collection, declared []ports.IndexModel) ([]string, error) {
	existing, err := coll.IndexNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}
	present := make(map[string]bool, len(existing))
	for _, name := range existing {
		present[name] = true
	}

	created := make([]string, 0, len(declared))
	for _, model := range declared {
		if present[model.Name] {
			continue
		}
		if err := coll.CreateIndex(ctx, model); err != nil {
			return created, fmt.Errorf("failed to create index %s: %w", model.Name, err)
		}
		present[model.Name] = true
		created = append(created, model.Name)
	}
	return created, nil
}
