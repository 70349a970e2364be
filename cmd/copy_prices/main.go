package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"tradeledger/config"
	"tradeledger/internal/adapters"
	"tradeledger/internal/adapters/logger"
	"tradeledger/internal/app"
	"tradeledger/internal/connection"
	"tradeledger/internal/utils"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	var (
		limit   int64
		csvPath string
	)

	cmd := &cobra.Command{
		Use:   "copy_prices",
		Short: "Copy price records from DB_READ_NAME into DB_WRITE_NAME",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("invalid --limit %d", limit)
			}

			// 1. Load Configuration
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cfg.ReadDBName == cfg.WriteDBName {
				return fmt.Errorf("DB_READ_NAME and DB_WRITE_NAME are both %q; nothing to copy", cfg.ReadDBName)
			}

			// 2. Initialize Logger
			appLogger := logger.New(cfg.LogLevel, cfg.LogJSON)
			ctx := context.Background()

			// 3. Initialize Store Connection
			connector, err := adapters.NewConnector(cfg, appLogger)
			if err != nil {
				return err
			}
			holder, err := connection.NewHolder(connector, appLogger)
			if err != nil {
				return err
			}
			defer holder.Close(ctx)

			// 4. Initialize Transaction Log
			tl, err := app.NewTransactionLog(ctx, app.Config{
				ReadDBName:  cfg.ReadDBName,
				WriteDBName: cfg.WriteDBName,
			}, holder, appLogger)
			if err != nil {
				return fmt.Errorf("failed to initialize transaction log: %w", err)
			}

			copied, err := tl.CopyPrice(ctx, limit)
			appLogger.Info(ctx, "Copied prices", map[string]interface{}{
				"count": copied,
				"from":  cfg.ReadDBName,
				"to":    cfg.WriteDBName,
			})
			if err != nil {
				return fmt.Errorf("copy stopped after %d prices: %w", copied, err)
			}

			if csvPath != "" {
				db, err := tl.WriteDB(ctx)
				if err != nil {
					return err
				}
				data, err := tl.GetPriceMarketData(ctx, db, app.MarketDataQuery{Ascending: true})
				if err != nil {
					return err
				}
				if err := utils.WriteMarketDataToCSV(data, csvPath); err != nil {
					return fmt.Errorf("failed to write CSV: %w", err)
				}
				appLogger.Info(ctx, "Saved to", map[string]interface{}{"filename": csvPath})
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&limit, "limit", 0, "maximum number of prices to copy, oldest first (0 = all)")
	cmd.Flags().StringVar(&csvPath, "csv", "", "also export the copied market data to this CSV file")
	return cmd
}
