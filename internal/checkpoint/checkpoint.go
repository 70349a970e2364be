package checkpoint

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"tradeledger/internal/connection"
	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
)

// Store persists serialized model checkpoints under a caller-chosen key.
// Saving under an existing key replaces the previous checkpoint.
type Store interface {
	Save(ctx context.Context, key string, blob domain.CheckpointBlob) error
	Load(ctx context.Context, key string) (domain.CheckpointBlob, error)
}

// Backends.
const (
	BackendDB    = "db"
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Config selects and configures a checkpoint backend.
type Config struct {
	Backend string
	Dir     string // file backend; empty means the working directory
	DBName  string // db backend
	Redis   RedisConfig
}

// New builds the backend named by cfg.Backend. holder is only used by the db backend.
func New(ctx context.Context, cfg Config, holder *connection.Holder, logger ports.Logger) (Store, error) {
	switch cfg.Backend {
	case BackendDB:
		store, err := NewDBStore(holder, cfg.DBName, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendFile, "":
		return NewFileStore(cfg.Dir, logger), nil
	case BackendRedis:
		store, err := NewRedisStore(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q: %w", cfg.Backend, ports.ErrConfiguration)
	}
}

// Encode serializes blob into the on-disk payload format.
func Encode(blob domain.CheckpointBlob) ([]byte, error) {
	data, err := bson.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	return data, nil
}

// Decode parses a payload written by Encode.
func Decode(data []byte) (domain.CheckpointBlob, error) {
	var blob domain.CheckpointBlob
	if err := bson.Unmarshal(data, &blob); err != nil {
		return domain.CheckpointBlob{}, fmt.Errorf("%v: %w", err, ports.ErrDecode)
	}
	return blob, nil
}

func validateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || filepath.Base(key) != key {
		return fmt.Errorf("invalid checkpoint key %q: %w", key, ports.ErrConfiguration)
	}
	return nil
}
