package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/eddiefleurent/elastic_grid/internal/models"
)

// JSONStorage persists the engine snapshot as a single pretty-printed JSON
// document, rewritten atomically on every save.
type JSONStorage struct {
	mu       sync.RWMutex
	filepath string
}

// NewJSONStorage creates a JSON-backed store for the given path. The file is
// not touched until the first Save.
func NewJSONStorage(filepath string) (*JSONStorage, error) {
	if filepath == "" {
		return nil, fmt.Errorf("storage path cannot be empty")
	}
	return &JSONStorage{filepath: filepath}, nil
}

// Load reads the snapshot from disk. A missing file yields a fresh default
// state; a corrupt file is logged and also yields a fresh default, so a bad
// deploy never wedges the engine at boot.
func (s *JSONStorage) Load() (*models.SystemState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return models.NewSystemState(), nil
		}
		return nil, fmt.Errorf("reading state file %s: %w", s.filepath, err)
	}

	state := &models.SystemState{}
	if err := json.Unmarshal(data, state); err != nil {
		log.Printf("[STORAGE] state file %s is corrupt, starting fresh: %v", s.filepath, err)
		return models.NewSystemState(), nil
	}

	state.Normalize()
	return state, nil
}

// Save marshals the snapshot and writes it through a temp file followed by
// an atomic rename, so readers never observe a partial document.
func (s *JSONStorage) Save(state *models.SystemState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	// Write to temp file first
	tmpFile := s.filepath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("writing temp state file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpFile, s.filepath); err != nil {
		return fmt.Errorf("renaming temp state file: %w", err)
	}
	return nil
}

// Path returns the backing file path.
func (s *JSONStorage) Path() string {
	return s.filepath
}
