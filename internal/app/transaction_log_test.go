package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/adapters/sqlite"
	"tradeledger/internal/connection"
	"tradeledger/internal/counter"
	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
	"tradeledger/internal/repository"
)

// Mock implementations
type mockLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

// setupHolder opens a temporary SQLite document store behind a connection holder.
func setupHolder(t *testing.T) *connection.Holder {
	t.Helper()
	connector, err := sqlite.NewConnector(sqlite.Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	holder, err := connection.NewHolder(connector, &mockLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { holder.Close(context.Background()) })
	return holder
}

func setupLog(t *testing.T, cfg Config) (*TransactionLog, ports.Database, *mockLogger) {
	t.Helper()
	ctx := context.Background()
	if cfg.WriteDBName == "" {
		cfg.WriteDBName = "trading"
	}
	logger := &mockLogger{}
	tl, err := NewTransactionLog(ctx, cfg, setupHolder(t), logger)
	require.NoError(t, err)
	db, err := tl.WriteDB(ctx)
	require.NoError(t, err)
	return tl, db, logger
}

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestNewTransactionLog_Validation(t *testing.T) {
	ctx := context.Background()
	_, err := NewTransactionLog(ctx, Config{WriteDBName: "trading"}, nil, &mockLogger{})
	assert.ErrorIs(t, err, ports.ErrConfiguration)

	_, err = NewTransactionLog(ctx, Config{}, setupHolder(t), &mockLogger{})
	assert.ErrorIs(t, err, ports.ErrConfiguration)
}

func TestNewTransactionLog_RecoversCountersAndCreatesIndexes(t *testing.T) {
	ctx := context.Background()
	holder := setupHolder(t)
	db, err := holder.Get(ctx, "trading")
	require.NoError(t, err)

	positions := repository.New[domain.Position](repository.PositionDescriptor, repository.NewEngine())
	for _, id := range []uint32{1, 2, 5} {
		require.NoError(t, positions.Insert(ctx, db, domain.Position{ID: id}))
	}

	logger := &mockLogger{}
	tl, err := NewTransactionLog(ctx, Config{WriteDBName: "trading"}, holder, logger)
	require.NoError(t, err)
	assert.Contains(t, logger.warnMsgs, "Counters recovered")

	id, err := tl.IncrementCounter(counter.Position)
	require.NoError(t, err)
	assert.Equal(t, uint32(6), id)

	id, err = tl.IncrementCounter(counter.Pnl)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id)

	names, err := db.Collection(repository.PriceCollection).IndexNames(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"id_1", "price_point.timestamp_1", "price_point.timestamp_-1"}, names)

	// Restarting reconciles without error.
	_, err = NewTransactionLog(ctx, Config{WriteDBName: "trading"}, holder, &mockLogger{})
	assert.NoError(t, err)
}

func TestNewTransactionLog_BackTestReset(t *testing.T) {
	ctx := context.Background()
	holder := setupHolder(t)

	tl, err := NewTransactionLog(ctx, Config{WriteDBName: "trading"}, holder, &mockLogger{})
	require.NoError(t, err)
	db, err := tl.WriteDB(ctx)
	require.NoError(t, err)

	require.NoError(t, tl.InsertPosition(ctx, db, domain.Position{ID: 1, State: domain.StateOpen}))
	require.NoError(t, tl.InsertPrice(ctx, db, domain.Price{ID: 1, Name: "ETH"}))
	_, err = tl.UpdateAppState(ctx, db, StateUpdate{CircuitBreak: true})
	require.NoError(t, err)

	tl, err = NewTransactionLog(ctx, Config{WriteDBName: "trading", BackTest: true}, holder, &mockLogger{})
	require.NoError(t, err)

	positions, err := tl.GetAllPositions(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, positions)

	state, err := tl.GetAppState(ctx, db)
	require.NoError(t, err)
	assert.False(t, state.CircuitBreak)

	// Prices survive the reset and their counter continues.
	id, err := tl.IncrementCounter(counter.Price)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), id)

	id, err = tl.IncrementCounter(counter.Position)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id)

	// Indexes on the wiped collections are recreated.
	names, err := db.Collection(repository.PositionCollection).IndexNames(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"id_1", "open_timestamp_1", "open_timestamp_-1"}, names)
}

func TestTransactionLog_CounterLimit(t *testing.T) {
	tl, _, _ := setupLog(t, Config{Limits: counter.Limits{Pnl: 1}})

	_, err := tl.IncrementCounter(counter.Pnl)
	require.NoError(t, err)
	_, err = tl.IncrementCounter(counter.Pnl)
	assert.ErrorIs(t, err, ports.ErrCounterExhausted)
}

func TestTransactionLog_Positions(t *testing.T) {
	ctx := context.Background()
	tl, db, logger := setupLog(t, Config{})

	all, err := tl.GetAllPositions(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, all)

	for i, state := range []domain.PositionState{domain.StateOpen, domain.StateClosed, domain.StateOpen} {
		id, err := tl.IncrementCounter(counter.Position)
		require.NoError(t, err)
		require.NoError(t, tl.InsertPosition(ctx, db, domain.Position{
			ID:            id,
			FundName:      "fund",
			State:         state,
			OpenTimestamp: int64(100 * (i + 1)),
		}))
	}

	err = tl.InsertPosition(ctx, db, domain.Position{ID: 1})
	assert.ErrorIs(t, err, ports.ErrDuplicateKey)
	assert.Contains(t, logger.errorMsgs, "Failed to insert position")

	open, err := tl.GetOpenPositions(ctx, db)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, uint32(1), open[0].ID)
	assert.Equal(t, uint32(3), open[1].ID)

	closed, err := tl.UpdatePosition(ctx, db, domain.Position{ID: 3, FundName: "fund", State: domain.StateClosed, ClosePrice: decimal.NewFromInt(42)})
	require.NoError(t, err)
	assert.Equal(t, domain.StateClosed, closed.State)

	open, err = tl.GetOpenPositions(ctx, db)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, uint32(1), open[0].ID)
}

func TestTransactionLog_GetPriceMarketData(t *testing.T) {
	ctx := context.Background()
	tl, db, _ := setupLog(t, Config{})

	empty, err := tl.GetPriceMarketData(ctx, db, MarketDataQuery{Ascending: true})
	require.NoError(t, err)
	assert.Empty(t, empty)

	ts1, ts2, ts3 := int64(1), int64(2), int64(3)
	// Inserted out of timestamp order on purpose.
	require.NoError(t, tl.InsertPrice(ctx, db, domain.Price{ID: 1, Name: "ETH", TokenName: "perp", PricePoint: domain.NewPricePoint(decimal.NewFromInt(105), &ts2)}))
	require.NoError(t, tl.InsertPrice(ctx, db, domain.Price{ID: 2, Name: "ETH", TokenName: "perp", PricePoint: domain.NewPricePoint(decimal.NewFromInt(100), &ts1)}))
	require.NoError(t, tl.InsertPrice(ctx, db, domain.Price{ID: 3, Name: "ETH", TokenName: "spot", PricePoint: domain.NewPricePoint(decimal.NewFromInt(99), &ts3)}))

	t.Run("grouped and ordered by timestamp", func(t *testing.T) {
		for _, asc := range []bool{true, false} {
			data, err := tl.GetPriceMarketData(ctx, db, MarketDataQuery{Ascending: asc})
			require.NoError(t, err)
			require.Len(t, data, 1)
			require.Len(t, data["ETH"], 2)

			perp := data["ETH"]["perp"]
			require.Len(t, perp, 2)
			assert.Equal(t, int64(1), perp[0].Timestamp)
			assert.True(t, perp[0].Price.Equal(decimal.NewFromInt(100)))
			assert.Equal(t, int64(2), perp[1].Timestamp)
			assert.True(t, perp[1].Price.Equal(decimal.NewFromInt(105)))
			assert.Len(t, data["ETH"]["spot"], 1)
		}
	})

	t.Run("limit takes the newest ids when descending", func(t *testing.T) {
		data, err := tl.GetPriceMarketData(ctx, db, MarketDataQuery{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, data["ETH"]["spot"], 1)
		assert.Empty(t, data["ETH"]["perp"])
	})

	t.Run("by id", func(t *testing.T) {
		data, err := tl.GetPriceMarketData(ctx, db, MarketDataQuery{ID: 2, Limit: 10})
		require.NoError(t, err)
		require.Len(t, data["ETH"]["perp"], 1)
		assert.Equal(t, int64(1), data["ETH"]["perp"][0].Timestamp)
	})

	t.Run("missing id", func(t *testing.T) {
		data, err := tl.GetPriceMarketData(ctx, db, MarketDataQuery{ID: 99})
		require.NoError(t, err)
		assert.Empty(t, data)
	})
}

func TestTransactionLog_UpdatePrice(t *testing.T) {
	ctx := context.Background()
	tl, db, _ := setupLog(t, Config{})

	ts := int64(10)
	require.NoError(t, tl.UpdatePrice(ctx, db, domain.Price{ID: 1, Name: "ETH", TokenName: "perp", PricePoint: domain.NewPricePoint(decimal.NewFromInt(1), &ts)}))
	require.NoError(t, tl.UpdatePrice(ctx, db, domain.Price{ID: 1, Name: "ETH", TokenName: "perp", PricePoint: domain.NewPricePoint(decimal.NewFromInt(2), &ts)}))

	data, err := tl.GetPriceMarketData(ctx, db, MarketDataQuery{Ascending: true})
	require.NoError(t, err)
	require.Len(t, data["ETH"]["perp"], 1)
	assert.True(t, data["ETH"]["perp"][0].Price.Equal(decimal.NewFromInt(2)))
}

func TestTransactionLog_CopyPrice(t *testing.T) {
	ctx := context.Background()
	holder := setupHolder(t)

	src, err := holder.Get(ctx, "history")
	require.NoError(t, err)
	prices := repository.New[domain.Price](repository.PriceDescriptor, repository.NewEngine())
	for id := uint32(1); id <= 3; id++ {
		ts := int64(id)
		require.NoError(t, prices.Insert(ctx, src, domain.Price{ID: id, Name: "ETH", TokenName: "perp", PricePoint: domain.NewPricePoint(decimal.NewFromInt(int64(id)), &ts)}))
	}

	tl, err := NewTransactionLog(ctx, Config{ReadDBName: "history", WriteDBName: "backtest"}, holder, &mockLogger{})
	require.NoError(t, err)

	n, err := tl.CopyPrice(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	dst, err := tl.WriteDB(ctx)
	require.NoError(t, err)
	data, err := tl.GetPriceMarketData(ctx, dst, MarketDataQuery{Ascending: true})
	require.NoError(t, err)
	require.Len(t, data["ETH"]["perp"], 2)
	assert.Equal(t, int64(1), data["ETH"]["perp"][0].Timestamp)

	// A second full copy stops at the first duplicate id.
	n, err = tl.CopyPrice(ctx, 0)
	assert.ErrorIs(t, err, ports.ErrDuplicateKey)
	assert.Equal(t, 0, n)
}

func TestTransactionLog_InsertPnl(t *testing.T) {
	ctx := context.Background()
	tl, db, _ := setupLog(t, Config{})

	id, err := tl.IncrementCounter(counter.Pnl)
	require.NoError(t, err)
	require.NoError(t, tl.InsertPnl(ctx, db, domain.ProfitAndLoss{ID: id, Date: "2024-05-01", PnL: decimal.NewFromFloat(12.5)}))

	err = tl.InsertPnl(ctx, db, domain.ProfitAndLoss{ID: id, Date: "2024-05-02"})
	assert.ErrorIs(t, err, ports.ErrDuplicateKey)
}

func TestTransactionLog_GetAppStateDefault(t *testing.T) {
	tl, db, _ := setupLog(t, Config{})

	state, err := tl.GetAppState(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultApplicationState(), state)
}

func TestTransactionLog_UpdateAppState(t *testing.T) {
	ctx := context.Background()
	tl, db, _ := setupLog(t, Config{})

	t.Run("replace fields are idempotent", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_, err := tl.UpdateAppState(ctx, db, StateUpdate{LastEquity: dec(1000)})
			require.NoError(t, err)
		}
		state, err := tl.GetAppState(ctx, db)
		require.NoError(t, err)
		require.NotNil(t, state.LastEquity)
		assert.True(t, state.LastEquity.Equal(decimal.NewFromInt(1000)))
	})

	t.Run("cumulative fields accumulate", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_, err := tl.UpdateAppState(ctx, db, StateUpdate{CumulativeReturn: dec(10), CumulativeDD: dec(1)})
			require.NoError(t, err)
		}
		state, err := tl.GetAppState(ctx, db)
		require.NoError(t, err)
		assert.True(t, state.CumulativeReturn.Equal(decimal.NewFromInt(20)), state.CumulativeReturn.String())
		assert.True(t, state.CumulativeDD.Equal(decimal.NewFromInt(2)))
		// Untouched by later updates.
		require.NotNil(t, state.LastEquity)
		assert.True(t, state.LastEquity.Equal(decimal.NewFromInt(1000)))
	})

	t.Run("max drawdown only grows", func(t *testing.T) {
		tests := []struct {
			in   int64
			want int64
		}{
			{5, 5},
			{3, 5},
			{7, 7},
		}
		for _, tt := range tests {
			state, err := tl.UpdateAppState(ctx, db, StateUpdate{MaxDD: dec(tt.in)})
			require.NoError(t, err)
			require.NotNil(t, state.MaxDD)
			assert.True(t, state.MaxDD.Equal(decimal.NewFromInt(tt.want)), "in=%d got=%s", tt.in, state.MaxDD)
		}
	})

	t.Run("circuit break always overwrites and errors append", func(t *testing.T) {
		first, second := "2024-05-01 10:00:00", "2024-05-01 11:00:00"
		_, err := tl.UpdateAppState(ctx, db, StateUpdate{CircuitBreak: true, ErrorTime: &first})
		require.NoError(t, err)
		state, err := tl.UpdateAppState(ctx, db, StateUpdate{ErrorTime: &second})
		require.NoError(t, err)

		assert.False(t, state.CircuitBreak)
		assert.Equal(t, []string{first, second}, state.ErrorTime)
	})

	t.Run("fund configs and execution time replace", func(t *testing.T) {
		now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		ratio := decimal.NewFromFloat(1.5)
		configs := []domain.FundConfig{{
			Token:             "ETH",
			TradingStrategy:   domain.TradingStrategy{Kind: domain.StrategyInago, Trend: domain.TrendUp},
			AmountPerStrategy: decimal.NewFromInt(100),
			RiskReward:        decimal.NewFromInt(2),
			TakeProfitRatio:   &ratio,
			ATRTerm:           domain.ShortTerm,
			OpenHours:         4,
		}}
		_, err := tl.UpdateAppState(ctx, db, StateUpdate{LastExecutionTime: &now, FundConfigs: configs})
		require.NoError(t, err)

		state, err := tl.GetAppState(ctx, db)
		require.NoError(t, err)
		require.NotNil(t, state.LastExecutionTime)
		assert.True(t, state.LastExecutionTime.Equal(now))
		require.Len(t, state.FundConfigs, 1)
		assert.Equal(t, domain.TradingStrategy{Kind: domain.StrategyInago, Trend: domain.TrendUp}, state.FundConfigs[0].TradingStrategy)
		require.NotNil(t, state.FundConfigs[0].TakeProfitRatio)
		assert.True(t, state.FundConfigs[0].TakeProfitRatio.Equal(ratio))
	})

	all, err := db.Collection(repository.AppStateCollection).Find(ctx, nil, ports.FindOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTransactionLog_ConcurrentStateUpdates(t *testing.T) {
	ctx := context.Background()
	tl, db, _ := setupLog(t, Config{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tl.UpdateAppState(ctx, db, StateUpdate{CumulativeReturn: dec(1)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := tl.GetAppState(ctx, db)
	require.NoError(t, err)
	assert.True(t, state.CumulativeReturn.Equal(decimal.NewFromInt(10)))
}
