package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"tradeledger/internal/adapters/logger" // Import the logger package for LogLevel
)

// Store drivers.
const (
	DriverSQLite  = "sqlite"
	DriverMongoDB = "mongodb"
)

// Checkpoint backends.
const (
	CheckpointDB    = "db"
	CheckpointFile  = "file"
	CheckpointRedis = "redis"
)

// Config holds all application configuration.
type Config struct {
	// Store
	StoreDriver string
	StoreURI    string // SQLite file path or MongoDB connection string
	StoreTLS    bool
	ReadDBName  string
	WriteDBName string

	// Counters (0 = unbounded)
	MaxPositionCounter uint32
	MaxPriceCounter    uint32
	MaxPnlCounter      uint32

	// Backtest runs wipe positions and application state on startup
	BackTest bool

	// Checkpoints
	CheckpointBackend string
	CheckpointDir     string
	CheckpointDBName  string

	// Redis (checkpoint backend)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter
	LogJSON  bool
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Store
	cfg.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", DriverSQLite))
	switch cfg.StoreDriver {
	case DriverSQLite:
		cfg.StoreURI = getEnv("STORE_URI", "./data/tradeledger.db")
	case DriverMongoDB:
		cfg.StoreURI = getEnv("STORE_URI", "")
		if cfg.StoreURI == "" {
			errs = append(errs, "STORE_URI must be set for the mongodb driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown STORE_DRIVER %q (want sqlite or mongodb)", cfg.StoreDriver))
	}
	cfg.StoreTLS = getEnvAsBool("STORE_TLS", false)

	cfg.WriteDBName = getEnv("DB_WRITE_NAME", "trading")
	cfg.ReadDBName = getEnv("DB_READ_NAME", cfg.WriteDBName)
	if cfg.WriteDBName == "" || cfg.ReadDBName == "" {
		errs = append(errs, "DB_WRITE_NAME and DB_READ_NAME must not be empty")
	}

	// Counters
	if cfg.MaxPositionCounter, err = getEnvAsUint32Required("MAX_POSITION_COUNTER", 0); err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_POSITION_COUNTER: %v", err))
	}
	if cfg.MaxPriceCounter, err = getEnvAsUint32Required("MAX_PRICE_COUNTER", 0); err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_PRICE_COUNTER: %v", err))
	}
	if cfg.MaxPnlCounter, err = getEnvAsUint32Required("MAX_PNL_COUNTER", 0); err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_PNL_COUNTER: %v", err))
	}

	cfg.BackTest = getEnvAsBool("BACK_TEST", false)

	// Checkpoints
	cfg.CheckpointBackend = strings.ToLower(getEnv("CHECKPOINT_BACKEND", CheckpointFile))
	switch cfg.CheckpointBackend {
	case CheckpointDB, CheckpointFile, CheckpointRedis:
	default:
		errs = append(errs, fmt.Sprintf("unknown CHECKPOINT_BACKEND %q (want db, file or redis)", cfg.CheckpointBackend))
	}
	cfg.CheckpointDir = getEnv("CHECKPOINT_DIR", "")
	cfg.CheckpointDBName = getEnv("CHECKPOINT_DB_NAME", cfg.WriteDBName)

	// Redis
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB, err = getEnvAsIntRequired("REDIS_DB", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid REDIS_DB: %v", err))
	} else if cfg.RedisDB < 0 {
		errs = append(errs, "REDIS_DB cannot be negative")
	}
	cfg.RedisPrefix = getEnv("REDIS_PREFIX", "checkpoint:")
	if cfg.CheckpointBackend == CheckpointRedis && cfg.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR must be set for the redis checkpoint backend")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package
	cfg.LogJSON = getEnvAsBool("LOG_JSON", false)

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsUint32Required(key string, defaultValue uint32) (uint32, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(valueStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid unsigned value '%s' for key %s: %w", valueStr, key, err)
	}
	return uint32(value), nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
