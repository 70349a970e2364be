package checkpoint

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"tradeledger/internal/connection"
	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
	"tradeledger/internal/repository"
)

// DBStore keeps checkpoints in the model_params collection, one document per key
// holding the encoded payload as a binary field.
type DBStore struct {
	holder *connection.Holder
	dbName string
	logger ports.Logger
}

// NewDBStore returns a store writing to dbName through holder.
func NewDBStore(holder *connection.Holder, dbName string, logger ports.Logger) (*DBStore, error) {
	if holder == nil {
		return nil, fmt.Errorf("connection holder is required for the db checkpoint backend: %w", ports.ErrConfiguration)
	}
	if dbName == "" {
		return nil, fmt.Errorf("database name is required for the db checkpoint backend: %w", ports.ErrConfiguration)
	}
	return &DBStore{holder: holder, dbName: dbName, logger: logger}, nil
}

// binaryField is the extended JSON form of a generic BSON binary value.
type binaryField struct {
	Binary struct {
		Base64  string `json:"base64"`
		SubType string `json:"subType"`
	} `json:"$binary"`
}

type modelDocument struct {
	Key   string      `json:"key"`
	Model binaryField `json:"model"`
}

// Save upserts the checkpoint document for key.
func (s *DBStore) Save(ctx context.Context, key string, blob domain.CheckpointBlob) error {
	if key == "" {
		return fmt.Errorf("empty checkpoint key: %w", ports.ErrConfiguration)
	}
	data, err := Encode(blob)
	if err != nil {
		return err
	}

	doc := modelDocument{Key: key}
	doc.Model.Binary.Base64 = base64.StdEncoding.EncodeToString(data)
	doc.Model.Binary.SubType = "00"
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint document: %w", err)
	}

	return s.holder.With(ctx, s.dbName, func(db ports.Database) error {
		coll := db.Collection(repository.ModelCollection)
		if _, err := coll.FindOneAndUpsert(ctx, ports.Filter{ports.Eq("key", key)}, raw); err != nil {
			return fmt.Errorf("failed to save checkpoint %s: %w", key, err)
		}
		s.logger.Debug(ctx, "Checkpoint saved", map[string]interface{}{"key": key, "bytes": len(data)})
		return nil
	})
}

// Load fetches and decodes the checkpoint stored under key.
func (s *DBStore) Load(ctx context.Context, key string) (domain.CheckpointBlob, error) {
	var blob domain.CheckpointBlob
	err := s.holder.With(ctx, s.dbName, func(db ports.Database) error {
		raw, err := db.Collection(repository.ModelCollection).FindOne(ctx, ports.Filter{ports.Eq("key", key)})
		if err != nil {
			return fmt.Errorf("failed to load checkpoint %s: %w", key, err)
		}

		var doc modelDocument
		if err := json.Unmarshal(raw, &doc); err != nil || doc.Model.Binary.Base64 == "" {
			return fmt.Errorf("checkpoint %s has no binary model field: %w", key, ports.ErrDecode)
		}
		data, err := base64.StdEncoding.DecodeString(doc.Model.Binary.Base64)
		if err != nil {
			return fmt.Errorf("checkpoint %s: %v: %w", key, err, ports.ErrDecode)
		}
		blob, err = Decode(data)
		return err
	})
	return blob, err
}
