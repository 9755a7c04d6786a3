package memory

import (
	"context"
	"sync"

	"base-launch-radar/internal/domain"
	"base-launch-radar/internal/storage"
)

// SubscriberStore is an in-memory implementation of storage.SubscriberStore.
// Used for dry runs and tests; production reads subscribers from Postgres.
type SubscriberStore struct {
	mu   sync.RWMutex
	subs []*domain.Subscriber
}

// NewSubscriberStore creates a new in-memory subscriber store.
func NewSubscriberStore(subs ...*domain.Subscriber) *SubscriberStore {
	s := &SubscriberStore{}
	for _, sub := range subs {
		subCopy := *sub
		s.subs = append(s.subs, &subCopy)
	}
	return s
}

// Snapshot returns all subscribers.
func (s *SubscriberStore) Snapshot(_ context.Context) ([]*domain.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		subCopy := *sub
		out = append(out, &subCopy)
	}
	return out, nil
}

// Add appends a subscriber to the snapshot.
func (s *SubscriberStore) Add(sub *domain.Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subCopy := *sub
	s.subs = append(s.subs, &subCopy)
}

// Verify interface compliance at compile time.
var _ storage.SubscriberStore = (*SubscriberStore)(nil)
