package storage

import (
	"sync"

	"github.com/eddiefleurent/elastic_grid/internal/models"
)

// MockStorage implements Interface for testing
type MockStorage struct {
	mu            sync.Mutex
	saveError     error
	loadError     error
	state         *models.SystemState
	lastSaved     *models.SystemState
	saveCallCount int
	loadCallCount int
}

// NewMockStorage creates a new mock storage for testing
func NewMockStorage() *MockStorage {
	return &MockStorage{}
}

// Load returns the seeded state (or a fresh default) unless a load error is set.
func (m *MockStorage) Load() (*models.SystemState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCallCount++
	if m.loadError != nil {
		return nil, m.loadError
	}
	if m.state == nil {
		return models.NewSystemState(), nil
	}
	return m.state.Clone(), nil
}

// Save records a deep copy of the snapshot unless a save error is set.
func (m *MockStorage) Save(state *models.SystemState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCallCount++
	if m.saveError != nil {
		return m.saveError
	}
	m.lastSaved = state.Clone()
	return nil
}

// SeedState sets the snapshot returned by Load.
func (m *MockStorage) SeedState(state *models.SystemState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state.Clone()
}

// SetSaveError makes subsequent saves fail with err.
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// SetLoadError makes subsequent loads fail with err.
func (m *MockStorage) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadError = err
}

// SaveCallCount returns how many times Save was invoked.
func (m *MockStorage) SaveCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCallCount
}

// LoadCallCount returns how many times Load was invoked.
func (m *MockStorage) LoadCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadCallCount
}

// LastSaved returns the most recently saved snapshot, or nil.
func (m *MockStorage) LastSaved() *models.SystemState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSaved
}
