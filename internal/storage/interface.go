package storage

import (
	"github.com/eddiefleurent/elastic_grid/internal/models"
)

// Interface defines the contract for state snapshot persistence.
//
// Implementations must be safe for concurrent use - callers can assume both
// methods are goroutine-safe. The provided JSONStorage implementation uses
// sync.RWMutex to serialize access.
type Interface interface {
	// Load returns the persisted snapshot, or a fresh default when no file
	// exists yet or the file cannot be parsed. It only returns an error for
	// I/O failures other than absence.
	Load() (*models.SystemState, error)

	// Save atomically rewrites the full snapshot.
	Save(state *models.SystemState) error
}

// NewStorage creates a new storage implementation (currently JSON-based)
// In the future, this can be extended to support different storage backends
func NewStorage(filepath string) (Interface, error) {
	return NewJSONStorage(filepath)
}

// Ensure implementations satisfy Interface
var _ Interface = (*JSONStorage)(nil)
var _ Interface = (*CircuitBreakerStorage)(nil)
var _ Interface = (*MockStorage)(nil)
