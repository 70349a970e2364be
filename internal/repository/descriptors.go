package repository

import (
	"context"

	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
)

// Collection names.
const (
	PositionCollection = "position"
	PnLCollection      = "balance"
	AppStateCollection = "app-state"
	PriceCollection    = "price"
	ModelCollection    = "model_params"
)

var (
	PositionDescriptor = Descriptor{
		Collection: PositionCollection,
		Supported:  OpInsert | OpUpdate | OpDeleteAll | OpSearch,
		Indexes: []ports.IndexModel{
			IndexOn("id", ports.Ascending, true),
			IndexOn("open_timestamp", ports.Ascending, false),
			IndexOn("open_timestamp", ports.Descending, false),
		},
	}

	PriceDescriptor = Descriptor{
		Collection: PriceCollection,
		Supported:  OpInsert | OpUpdate | OpSearch,
		Indexes: []ports.IndexModel{
			IndexOn("id", ports.Ascending, true),
			IndexOn("price_point.timestamp", ports.Ascending, false),
			IndexOn("price_point.timestamp", ports.Descending, false),
		},
	}

	PnLDescriptor = Descriptor{
		Collection: PnLCollection,
		Supported:  OpInsert | OpSearch,
		Indexes: []ports.IndexModel{
			IndexOn("id", ports.Ascending, true),
		},
	}

	AppStateDescriptor = Descriptor{
		Collection:  AppStateCollection,
		Supported:   OpUpdate | OpDeleteAll | OpSearch,
		SingletonID: domain.AppStateID,
		Indexes: []ports.IndexModel{
			IndexOn("id", ports.Ascending, true),
		},
	}
)

// Repositories bundles the repository of every persisted record type.
type Repositories struct {
	Positions *Repository[domain.Position]
	Prices    *Repository[domain.Price]
	PnLs      *Repository[domain.ProfitAndLoss]
	AppState  *Singleton[domain.ApplicationState]
	appState  *Repository[domain.ApplicationState]
}

// NewRepositories builds the repositories on top of engine.
func NewRepositories(engine *Engine) *Repositories {
	appState := New[domain.ApplicationState](AppStateDescriptor, engine)
	return &Repositories{
		Positions: New[domain.Position](PositionDescriptor, engine),
		Prices:    New[domain.Price](PriceDescriptor, engine),
		PnLs:      New[domain.ProfitAndLoss](PnLDescriptor, engine),
		AppState:  NewSingleton(appState, domain.DefaultApplicationState),
		appState:  appState,
	}
}

// AppStateRepository exposes the repository behind the AppState singleton.
func (r *Repositories) AppStateRepository() *Repository[domain.ApplicationState] {
	return r.appState
}

type indexed interface {
	CollectionName() string
	CreateIndexes(ctx context.Context, db ports.Database) ([]string, error)
}

func (r *Repositories) all() []indexed {
	return []indexed{r.Positions, r.PnLs, r.appState, r.Prices}
}

// CreateAllIndexes reconciles the declared indexes of every record type on db
// and returns the created index names per collection.
func (r *Repositories) CreateAllIndexes(ctx context.Context, db ports.Database) (map[string][]string, error) {
	created := make(map[string][]string)
	for _, repo := range r.all() {
		names, err := repo.CreateIndexes(ctx, db)
		if len(names) > 0 {
			created[repo.CollectionName()] = names
		}
		if err != nil {
			return created, err
		}
	}
	return created, nil
}
