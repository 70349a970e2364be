package adapters

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/config"
	"tradeledger/internal/adapters/mongodb"
	"tradeledger/internal/adapters/sqlite"
	"tradeledger/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func TestNewConnector(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		wantType interface{}
		wantErr  error
	}{
		{
			name:     "sqlite",
			cfg:      config.Config{StoreDriver: config.DriverSQLite, StoreURI: filepath.Join(t.TempDir(), "x.db")},
			wantType: &sqlite.Connector{},
		},
		{
			name:     "mongodb",
			cfg:      config.Config{StoreDriver: config.DriverMongoDB, StoreURI: "mongodb://localhost:27017"},
			wantType: &mongodb.Connector{},
		},
		{
			name:    "mongodb without uri",
			cfg:     config.Config{StoreDriver: config.DriverMongoDB},
			wantErr: ports.ErrConfiguration,
		},
		{
			name:    "unknown",
			cfg:     config.Config{StoreDriver: "postgres"},
			wantErr: ports.ErrConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			c, err := NewConnector(&cfg, &mockLogger{})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, c)
		})
	}
}

func TestNewConnector_SQLiteConnects(t *testing.T) {
	cfg := config.Config{StoreDriver: config.DriverSQLite, StoreURI: filepath.Join(t.TempDir(), "x.db")}
	c, err := NewConnector(&cfg, &mockLogger{})
	require.NoError(t, err)

	client, err := c.Connect(context.Background())
	require.NoError(t, err)
	defer client.Close(context.Background())
	assert.NoError(t, client.Ping(context.Background()))
}
