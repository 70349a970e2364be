package counter

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"tradeledger/internal/adapters/sqlite"
	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
	"tradeledger/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func setupTestDB(t *testing.T) ports.Database {
	t.Helper()
	connector, err := sqlite.NewConnector(sqlite.Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	client, err := connector.Connect(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close(context.Background()) })
	return client.Database("trading")
}

func TestCounter_Increment(t *testing.T) {
	tests := []struct {
		name    string
		start   uint32
		max     uint32
		wantIDs []uint32
		wantErr bool
	}{
		{name: "unbounded", start: 0, max: 0, wantIDs: []uint32{1, 2, 3}},
		{name: "resumes after start", start: 5, max: 0, wantIDs: []uint32{6, 7}},
		{name: "reaches max", start: 0, max: 2, wantIDs: []uint32{1, 2}, wantErr: true},
		{name: "already at max", start: 2, max: 2, wantIDs: []uint32{}, wantErr: true},
		{name: "uint32 ceiling", start: ^uint32(0), max: 0, wantIDs: []uint32{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(Position, tt.start, tt.max)
			got := make([]uint32, 0)
			for range tt.wantIDs {
				id, err := c.Increment()
				require.NoError(t, err)
				got = append(got, id)
			}
			assert.Equal(t, tt.wantIDs, got)

			if tt.wantErr {
				before := c.Current()
				_, err := c.Increment()
				assert.ErrorIs(t, err, ports.ErrCounterExhausted)
				assert.Equal(t, before, c.Current())
			}
		})
	}
}

func TestCounter_ConcurrentIncrementsAreUnique(t *testing.T) {
	c := New(Price, 0, 0)
	const workers, perWorker = 8, 250

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uint32]bool)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				id, err := c.Increment()
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
	assert.Equal(t, uint32(workers*perWorker), c.Current())
}

func TestRecover_FromStoredIDs(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := repository.New[domain.Position](repository.PositionDescriptor, repository.NewEngine())

	for _, id := range []uint32{1, 5, 2} {
		require.NoError(t, repo.Insert(ctx, db, domain.Position{ID: id}))
	}

	c, err := Recover(ctx, db, repo, Position, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), c.Current())

	next, err := c.Increment()
	require.NoError(t, err)
	assert.Equal(t, uint32(6), next)
}

func TestRecover_EmptyCollection(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.New[domain.ProfitAndLoss](repository.PnLDescriptor, repository.NewEngine())

	c, err := Recover(context.Background(), db, repo, Pnl, 10)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), c.Current())
	assert.Equal(t, uint32(10), c.Max())
}

func TestRecoverSet(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repos := repository.NewRepositories(repository.NewEngine())

	require.NoError(t, repos.Prices.Insert(ctx, db, domain.Price{ID: 3}))
	require.NoError(t, repos.PnLs.Insert(ctx, db, domain.ProfitAndLoss{ID: 9}))

	set, err := RecoverSet(ctx, db, repos, Limits{})
	require.NoError(t, err)

	id, err := set.Increment(Position)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id)

	id, err = set.Increment(Price)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), id)

	assert.Equal(t, map[string]interface{}{
		"position_counter": uint32(1),
		"price_counter":    uint32(4),
		"pnl_counter":      uint32(9),
	}, set.Snapshot())

	_, err = set.Increment(Type(42))
	assert.ErrorIs(t, err, ports.ErrUnsupported)
}
