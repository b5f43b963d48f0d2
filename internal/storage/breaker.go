package storage

import (
	"log"
	"time"

	"github.com/sony/gobreaker"

	"github.com/eddiefleurent/elastic_grid/internal/models"
)

// CircuitBreakerStorage wraps a storage backend with circuit breaker
// functionality on the write path. Saves run on every state transition at
// tick cadence; when the disk goes bad the breaker degrades them to fast
// failures instead of stalling each tick on I/O. Loads pass through, since
// they happen once at boot.
type CircuitBreakerStorage struct {
	store   Interface
	breaker *gobreaker.CircuitBreaker
}

// CircuitBreakerSettings configures circuit breaker behavior
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// NewCircuitBreakerStorage wraps the store with sensible defaults.
func NewCircuitBreakerStorage(store Interface) *CircuitBreakerStorage {
	return NewCircuitBreakerStorageWithSettings(store, CircuitBreakerSettings{
		MaxRequests:  3,                // Allow 3 saves when half-open
		Interval:     60 * time.Second, // Reset counts every minute
		Timeout:      30 * time.Second, // Open circuit for 30 seconds
		MinRequests:  5,                // Minimum saves before tripping
		FailureRatio: 0.6,              // Trip if 60% failure rate
	})
}

// NewCircuitBreakerStorageWithSettings wraps the store with custom settings.
func NewCircuitBreakerStorageWithSettings(store Interface, settings CircuitBreakerSettings) *CircuitBreakerStorage {
	gbSettings := gobreaker.Settings{
		Name:        "StorageCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s state changed from %s to %s", name, from, to)
		},
	}

	return &CircuitBreakerStorage{
		store:   store,
		breaker: gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// Load passes through to the underlying store.
func (c *CircuitBreakerStorage) Load() (*models.SystemState, error) {
	return c.store.Load()
}

// Save wraps the underlying save with the circuit breaker.
func (c *CircuitBreakerStorage) Save(state *models.SystemState) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.store.Save(state)
	})
	return err
}

// State exposes the breaker state for health reporting.
func (c *CircuitBreakerStorage) State() gobreaker.State {
	return c.breaker.State()
}
