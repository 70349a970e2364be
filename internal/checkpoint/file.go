package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
)

// FileStore keeps each checkpoint in "<key>.bin" under a directory.
type FileStore struct {
	dir    string
	logger ports.Logger
}

// NewFileStore returns a store rooted at dir, or at the working directory when dir is empty.
func NewFileStore(dir string, logger ports.Logger) *FileStore {
	return &FileStore{dir: dir, logger: logger}
}

func (s *FileStore) path(key string) string {
	name := key + ".bin"
	if s.dir == "" {
		return name
	}
	return filepath.Join(s.dir, name)
}

// Save writes the checkpoint, replacing any previous file.
func (s *FileStore) Save(ctx context.Context, key string, blob domain.CheckpointBlob) error {
	if err := validateKey(key); err != nil {
		return err
	}
	data, err := Encode(blob)
	if err != nil {
		return err
	}
	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0755); err != nil {
			return fmt.Errorf("failed to create checkpoint directory '%s': %w", s.dir, err)
		}
	}

	// Write to a sibling then rename so a crash never leaves a truncated checkpoint.
	path := s.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint '%s': %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move checkpoint into place '%s': %w", path, err)
	}
	s.logger.Debug(ctx, "Checkpoint saved", map[string]interface{}{"key": key, "path": path, "bytes": len(data)})
	return nil
}

// Load reads the checkpoint stored under key.
func (s *FileStore) Load(ctx context.Context, key string) (domain.CheckpointBlob, error) {
	if err := validateKey(key); err != nil {
		return domain.CheckpointBlob{}, err
	}
	path := s.path(key)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.CheckpointBlob{}, fmt.Errorf("checkpoint file '%s': %w", path, ports.ErrNotFound)
	}
	if err != nil {
		return domain.CheckpointBlob{}, fmt.Errorf("failed to read checkpoint '%s': %w", path, err)
	}
	return Decode(data)
}
