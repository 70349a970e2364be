package adapters

import (
	"fmt"

	"tradeledger/config"
	"tradeledger/internal/adapters/mongodb"
	"tradeledger/internal/adapters/sqlite"
	"tradeledger/internal/ports"
)

// NewConnector returns the document store connector selected by cfg.StoreDriver.
func NewConnector(cfg *config.Config, logger ports.Logger) (ports.Connector, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		c, err := sqlite.NewConnector(sqlite.Config{DBPath: cfg.StoreURI, Logger: logger})
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.DriverMongoDB:
		c, err := mongodb.NewConnector(mongodb.Config{URI: cfg.StoreURI, TLS: cfg.StoreTLS, Logger: logger})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q: %w", cfg.StoreDriver, ports.ErrConfiguration)
	}
}
