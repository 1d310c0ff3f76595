package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Position records how far into the watched file reading has advanced,
// together with the identity of the file the offset belongs to.
type Position struct {
	Path   string `json:"path"`
	Offset int64  `json:"offset"`
	Device uint64 `json:"device"`
	Inode  uint64 `json:"inode"`
}

// Store persists the tail position so a restart can resume without
// re-reading or skipping lines. Badge state is never stored here; only
// the file offset survives a restart.
type Store struct {
	path string
}

// NewStore creates a store backed by the given file path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted position. A missing file is not an error
// and yields a nil position.
func (s *Store) Load() (*Position, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var pos Position
	if err := json.Unmarshal(data, &pos); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint data: %w", err)
	}
	return &pos, nil
}

// Save writes the position atomically via a temporary file rename
func (s *Store) Save(pos Position) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	data, err := json.MarshalIndent(pos, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint data: %w", err)
	}

	tmpFile := s.path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}

	if err := os.Rename(tmpFile, s.path); err != nil {
		return fmt.Errorf("failed to rename checkpoint file: %w", err)
	}

	return nil
}
