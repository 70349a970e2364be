package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
)

// RedisConfig holds the connection settings of the redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps each checkpoint payload under "<prefix><key>".
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	logger ports.Logger
}

// NewRedisStore connects to redis and verifies the server answers.
func NewRedisStore(ctx context.Context, cfg RedisConfig, logger ports.Logger) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %v: %w", err, ports.ErrConnection)
	}
	return NewRedisStoreWithClient(rdb, cfg.Prefix, logger), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(rdb *redis.Client, prefix string, logger ports.Logger) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix, logger: logger}
}

// Save stores the encoded checkpoint without expiry.
func (s *RedisStore) Save(ctx context.Context, key string, blob domain.CheckpointBlob) error {
	if key == "" {
		return fmt.Errorf("empty checkpoint key: %w", ports.ErrConfiguration)
	}
	data, err := Encode(blob)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", key, err)
	}
	s.logger.Debug(ctx, "Checkpoint saved", map[string]interface{}{"key": s.prefix + key, "bytes": len(data)})
	return nil
}

// Load fetches the checkpoint stored under key.
func (s *RedisStore) Load(ctx context.Context, key string) (domain.CheckpointBlob, error) {
	data, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CheckpointBlob{}, fmt.Errorf("checkpoint %s: %w", key, ports.ErrNotFound)
	}
	if err != nil {
		return domain.CheckpointBlob{}, fmt.Errorf("failed to load checkpoint %s: %w", key, err)
	}
	return Decode(data)
}

// Close releases the redis connection pool.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
