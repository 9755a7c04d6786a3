package memory

import (
	"context"
	"sync"

	"base-launch-radar/internal/storage"
)

// DiscoveryStateStore is an in-memory implementation of
// storage.DiscoveryStateStore.
type DiscoveryStateStore struct {
	mu       sync.RWMutex
	cursors  map[string]uint64
	disabled map[string]bool
}

// NewDiscoveryStateStore creates a new in-memory discovery state store.
func NewDiscoveryStateStore() *DiscoveryStateStore {
	return &DiscoveryStateStore{
		cursors:  make(map[string]uint64),
		disabled: make(map[string]bool),
	}
}

// GetCursor returns the last scanned block for a factory.
func (s *DiscoveryStateStore) GetCursor(_ context.Context, factoryID string) (uint64, error) {
	if factoryID == "" {
		return 0, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cursor, ok := s.cursors[factoryID]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return cursor, nil
}

// SetCursor saves the last scanned block. Cursors never move backwards.
func (s *DiscoveryStateStore) SetCursor(_ context.Context, factoryID string, block uint64) error {
	if factoryID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.cursors[factoryID]; ok && block < prev {
		return storage.ErrInvalidInput
	}
	s.cursors[factoryID] = block
	return nil
}

// AllCursors returns every persisted cursor keyed by factory id.
func (s *DiscoveryStateStore) AllCursors(_ context.Context) (map[string]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]uint64, len(s.cursors))
	for k, v := range s.cursors {
		out[k] = v
	}
	return out, nil
}

// IsEnabled reports whether discovery runs for the factory.
func (s *DiscoveryStateStore) IsEnabled(_ context.Context, factoryID string) (bool, error) {
	if factoryID == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return !s.disabled[factoryID], nil
}

// SetEnabled toggles discovery for the factory.
func (s *DiscoveryStateStore) SetEnabled(_ context.Context, factoryID string, enabled bool) error {
	if factoryID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if enabled {
		delete(s.disabled, factoryID)
	} else {
		s.disabled[factoryID] = true
	}
	return nil
}

// Verify interface compliance at compile time.
var _ storage.DiscoveryStateStore = (*DiscoveryStateStore)(nil)
