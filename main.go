package main

import (
	"context"
	"errors"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"tradeledger/config"
	"tradeledger/internal/adapters"
	"tradeledger/internal/adapters/logger"
	"tradeledger/internal/app"
	"tradeledger/internal/checkpoint"
	"tradeledger/internal/connection"
	"tradeledger/internal/counter"
	"tradeledger/internal/ports"
)

// checkpointKey is the model checkpoint probed at startup.
const checkpointKey = "model"

func main() {
	ctx := context.Background()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.LogLevel, cfg.LogJSON)
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Store Connection
	connector, err := adapters.NewConnector(cfg, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to configure document store")
		log.Fatalf("FATAL: Failed to configure document store: %v", err)
	}
	holder, err := connection.NewHolder(connector, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize connection holder: %v", err)
	}
	defer func() {
		if err := holder.Close(ctx); err != nil {
			appLogger.Error(ctx, err, "Error closing document store")
		}
	}()

	// 4. Initialize Transaction Log (indexes, backtest reset, counters)
	tl, err := app.NewTransactionLog(ctx, app.Config{
		ReadDBName:  cfg.ReadDBName,
		WriteDBName: cfg.WriteDBName,
		BackTest:    cfg.BackTest,
		Limits: counter.Limits{
			Position: cfg.MaxPositionCounter,
			Price:    cfg.MaxPriceCounter,
			Pnl:      cfg.MaxPnlCounter,
		},
	}, holder, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize transaction log")
		log.Fatalf("FATAL: Failed to initialize transaction log: %v", err)
	}
	appLogger.Info(ctx, "Transaction log initialized", map[string]interface{}{
		"driver":   cfg.StoreDriver,
		"read_db":  cfg.ReadDBName,
		"write_db": cfg.WriteDBName,
		"backtest": cfg.BackTest,
	})

	// 5. Initialize Checkpoint Store
	store, err := checkpoint.New(ctx, checkpoint.Config{
		Backend: cfg.CheckpointBackend,
		Dir:     cfg.CheckpointDir,
		DBName:  cfg.CheckpointDBName,
		Redis: checkpoint.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		},
	}, holder, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize checkpoint store")
		log.Fatalf("FATAL: Failed to initialize checkpoint store: %v", err)
	}

	// 6. Report current state
	db, err := tl.WriteDB(ctx)
	if err != nil {
		log.Fatalf("FATAL: Failed to open write database: %v", err)
	}

	state, err := tl.GetAppState(ctx, db)
	if err != nil {
		appLogger.Warn(ctx, "Using default application state")
	}
	open, err := tl.GetOpenPositions(ctx, db)
	if err != nil {
		appLogger.Warn(ctx, "Could not list open positions", map[string]interface{}{"error": err.Error()})
	}
	appLogger.Info(ctx, "Application state", map[string]interface{}{
		"open_positions":    len(open),
		"circuit_break":     state.CircuitBreak,
		"cumulative_return": state.CumulativeReturn.String(),
		"errors_recorded":   len(state.ErrorTime),
		"funds":             len(state.FundConfigs),
	})

	blob, err := store.Load(ctx, checkpointKey)
	switch {
	case err == nil:
		appLogger.Info(ctx, "Model checkpoint found", map[string]interface{}{"key": checkpointKey, "bytes": len(blob.Model)})
	case errors.Is(err, ports.ErrNotFound):
		appLogger.Info(ctx, "No model checkpoint stored yet", map[string]interface{}{"key": checkpointKey})
	default:
		appLogger.Error(ctx, err, "Failed to load model checkpoint", map[string]interface{}{"key": checkpointKey})
	}

	appLogger.Info(ctx, "Application finished gracefully.")
}
