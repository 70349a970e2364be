package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"tradeledger/internal/connection"
	"tradeledger/internal/counter"
	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
	"tradeledger/internal/repository"
)

// Config holds the settings the transaction log needs at startup.
type Config struct {
	ReadDBName  string
	WriteDBName string
	Limits      counter.Limits
	// BackTest wipes positions and application state before indexes are reconciled.
	BackTest bool
}

// TransactionLog is the entry point the trading engine uses to persist and
// query positions, prices, pnl entries and the application state.
type TransactionLog struct {
	cfg      Config
	logger   ports.Logger
	holder   *connection.Holder
	repos    *repository.Repositories
	counters *counter.Set

	stateMu sync.Mutex // serializes read-modify-write of the application state
}

// MarketData groups price points by source name, then token name.
type MarketData map[string]map[string][]domain.PricePoint

// MarketDataQuery selects which price records GetPriceMarketData reads.
// A non-zero ID takes precedence over Limit and Ascending.
type MarketDataQuery struct {
	ID        uint32
	Limit     int64
	Ascending bool
}

// NewTransactionLog prepares the write database and recovers the counters.
// Failures here leave the process without usable persistence and should be fatal.
func NewTransactionLog(ctx context.Context, cfg Config, holder *connection.Holder, logger ports.Logger) (*TransactionLog, error) {
	if holder == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for TransactionLog: %w", ports.ErrConfiguration)
	}
	if cfg.WriteDBName == "" {
		return nil, fmt.Errorf("write database name must be set: %w", ports.ErrConfiguration)
	}
	if cfg.ReadDBName == "" {
		cfg.ReadDBName = cfg.WriteDBName
	}

	t := &TransactionLog{
		cfg:    cfg,
		logger: logger,
		holder: holder,
		repos:  repository.NewRepositories(repository.NewEngine()),
	}

	db, err := holder.Get(ctx, cfg.WriteDBName)
	if err != nil {
		return nil, err
	}

	if cfg.BackTest {
		if err := t.repos.Positions.DeleteAll(ctx, db); err != nil {
			return nil, fmt.Errorf("failed to reset positions for backtest: %w", err)
		}
		if err := t.repos.AppStateRepository().DeleteAll(ctx, db); err != nil {
			return nil, fmt.Errorf("failed to reset application state for backtest: %w", err)
		}
		logger.Info(ctx, "Backtest reset: positions and application state cleared")
	}

	created, err := t.repos.CreateAllIndexes(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	if len(created) > 0 {
		logger.Info(ctx, "Indexes created", map[string]interface{}{"indexes": created})
	}

	t.counters, err = counter.RecoverSet(ctx, db, t.repos, cfg.Limits)
	if err != nil {
		return nil, err
	}

	fields := t.counters.Snapshot()
	fields["max_position_counter"] = cfg.Limits.Position
	fields["max_price_counter"] = cfg.Limits.Price
	fields["max_pnl_counter"] = cfg.Limits.Pnl
	logger.Warn(ctx, "Counters recovered", fields)

	return t, nil
}

// IncrementCounter allocates the next id for records of type ct.
func (t *TransactionLog) IncrementCounter(ct counter.Type) (uint32, error) {
	return t.counters.Increment(ct)
}

// WriteDB returns the database new records are written to.
func (t *TransactionLog) WriteDB(ctx context.Context) (ports.Database, error) {
	return t.getDB(ctx, t.cfg.WriteDBName)
}

// ReadDB returns the database historical records are read from.
func (t *TransactionLog) ReadDB(ctx context.Context) (ports.Database, error) {
	return t.getDB(ctx, t.cfg.ReadDBName)
}

func (t *TransactionLog) getDB(ctx context.Context, name string) (ports.Database, error) {
	db, err := t.holder.Get(ctx, name)
	if err != nil {
		t.logger.Error(ctx, err, "Failed to acquire database", map[string]interface{}{"database": name})
		return nil, err
	}
	return db, nil
}

// WithWriteDB runs fn against the write database.
func (t *TransactionLog) WithWriteDB(ctx context.Context, fn func(ports.Database) error) error {
	return t.holder.With(ctx, t.cfg.WriteDBName, fn)
}

// --- Positions ---

// InsertPosition stores a new position. Its id must come from IncrementCounter.
func (t *TransactionLog) InsertPosition(ctx context.Context, db ports.Database, p domain.Position) error {
	if err := t.repos.Positions.Insert(ctx, db, p); err != nil {
		t.logger.Error(ctx, err, "Failed to insert position", map[string]interface{}{"id": p.ID})
		return err
	}
	return nil
}

// UpdatePosition replaces the stored fields of the position with p's id.
func (t *TransactionLog) UpdatePosition(ctx context.Context, db ports.Database, p domain.Position) (domain.Position, error) {
	stored, err := t.repos.Positions.Update(ctx, db, p)
	if err != nil {
		t.logger.Error(ctx, err, "Failed to update position", map[string]interface{}{"id": p.ID})
		return domain.Position{}, err
	}
	return stored, nil
}

// GetAllPositions returns every position in ascending id order.
func (t *TransactionLog) GetAllPositions(ctx context.Context, db ports.Database) ([]domain.Position, error) {
	positions, err := t.repos.Positions.Search(ctx, db, repository.Query{Mode: repository.Ascending, SortKey: "id"})
	if errors.Is(err, ports.ErrNotFound) {
		return []domain.Position{}, nil
	}
	if err != nil {
		t.logger.Error(ctx, err, "Failed to get positions")
		return nil, err
	}
	return positions, nil
}

// GetOpenPositions returns the positions still in the Open state.
func (t *TransactionLog) GetOpenPositions(ctx context.Context, db ports.Database) ([]domain.Position, error) {
	all, err := t.GetAllPositions(ctx, db)
	if err != nil {
		return nil, err
	}
	open := make([]domain.Position, 0, len(all))
	for i := range all {
		if all[i].IsOpen() {
			open = append(open, all[i])
		}
	}
	return open, nil
}

// --- Prices ---

// InsertPrice stores a new price record.
func (t *TransactionLog) InsertPrice(ctx context.Context, db ports.Database, p domain.Price) error {
	if err := t.repos.Prices.Insert(ctx, db, p); err != nil {
		t.logger.Error(ctx, err, "Failed to insert price", map[string]interface{}{"id": p.ID})
		return err
	}
	return nil
}

// UpdatePrice upserts the price record with p's id.
func (t *TransactionLog) UpdatePrice(ctx context.Context, db ports.Database, p domain.Price) error {
	if _, err := t.repos.Prices.Update(ctx, db, p); err != nil {
		t.logger.Error(ctx, err, "Failed to update price", map[string]interface{}{"id": p.ID})
		return err
	}
	return nil
}

// CopyPrice copies up to limit price records (0 = all), oldest first, from the
// read database into the write database and returns how many were copied.
// It stops at the first failed write.
func (t *TransactionLog) CopyPrice(ctx context.Context, limit int64) (int, error) {
	src, err := t.ReadDB(ctx)
	if err != nil {
		return 0, err
	}
	dst, err := t.WriteDB(ctx)
	if err != nil {
		return 0, err
	}

	prices, err := t.repos.Prices.Search(ctx, src, repository.Query{Mode: repository.Ascending, SortKey: "id", Limit: limit})
	if errors.Is(err, ports.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		t.logger.Error(ctx, err, "Failed to read prices")
		return 0, err
	}
	t.logger.Debug(ctx, "Copying prices", map[string]interface{}{"count": len(prices)})

	for i, p := range prices {
		if err := t.repos.Prices.Insert(ctx, dst, p); err != nil {
			t.logger.Error(ctx, err, "Failed to write price", map[string]interface{}{"id": p.ID})
			return i, err
		}
	}
	return len(prices), nil
}

// GetPriceMarketData reads price records and groups their points by name and
// token, each group ordered by ascending timestamp. No matching record yields an
// empty result.
func (t *TransactionLog) GetPriceMarketData(ctx context.Context, db ports.Database, q MarketDataQuery) (MarketData, error) {
	query := repository.Query{Mode: repository.Descending, SortKey: "id", Limit: q.Limit}
	if q.Ascending {
		query.Mode = repository.Ascending
	}
	if q.ID != 0 {
		query = repository.Query{Mode: repository.ByID, ID: q.ID}
	}

	prices, err := t.repos.Prices.Search(ctx, db, query)
	if errors.Is(err, ports.ErrNotFound) {
		return MarketData{}, nil
	}
	if err != nil {
		t.logger.Warn(ctx, "Failed to get price market data", map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	return groupPrices(prices), nil
}

func groupPrices(prices []domain.Price) MarketData {
	out := make(MarketData)
	for _, p := range prices {
		byToken, ok := out[p.Name]
		if !ok {
			byToken = make(map[string][]domain.PricePoint)
			out[p.Name] = byToken
		}
		byToken[p.TokenName] = append(byToken[p.TokenName], p.PricePoint)
	}
	for _, byToken := range out {
		for _, points := range byToken {
			sort.SliceStable(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp })
		}
	}
	return out
}

// --- PnL ---

// InsertPnl stores a new profit-and-loss entry.
func (t *TransactionLog) InsertPnl(ctx context.Context, db ports.Database, pnl domain.ProfitAndLoss) error {
	if err := t.repos.PnLs.Insert(ctx, db, pnl); err != nil {
		t.logger.Error(ctx, err, "Failed to insert pnl", map[string]interface{}{"id": pnl.ID})
		return err
	}
	return nil
}

// --- Application state ---

// GetAppState returns the stored application state, or the default state when
// none was stored. On a read failure the default is returned with the error.
func (t *TransactionLog) GetAppState(ctx context.Context, db ports.Database) (domain.ApplicationState, error) {
	state, err := t.repos.AppState.Load(ctx, db)
	if err != nil {
		t.logger.Warn(ctx, "Failed to get application state", map[string]interface{}{"error": err.Error()})
		return domain.DefaultApplicationState(), err
	}
	return state, nil
}

// UpdateAppState merges u into the stored application state and returns the result.
func (t *TransactionLog) UpdateAppState(ctx context.Context, db ports.Database, u StateUpdate) (domain.ApplicationState, error) {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()

	state, err := t.repos.AppState.Load(ctx, db)
	if err != nil {
		return domain.ApplicationState{}, err
	}
	u.Apply(&state)
	state.ID = domain.AppStateID

	stored, err := t.repos.AppState.Store(ctx, db, state)
	if err != nil {
		t.logger.Error(ctx, err, "Failed to update application state")
		return domain.ApplicationState{}, err
	}
	return stored, nil
}

// Close releases the store connection.
func (t *TransactionLog) Close(ctx context.Context) error {
	return t.holder.Close(ctx)
}
