package memory

import (
	"container/list"
	"context"
	"sync"

	"base-launch-radar/internal/storage"
)

// DefaultDedupCap bounds the dedup horizon.
const DefaultDedupCap = 50_000

// DedupStore is an in-memory LRU implementation of storage.DedupStore.
type DedupStore struct {
	mu    sync.Mutex
	cap   int
	order *list.List               // front = most recently used
	elems map[string]*list.Element // key -> order element
}

// NewDedupStore creates a new in-memory dedup store with the given cap.
// A cap <= 0 falls back to DefaultDedupCap.
func NewDedupStore(cap int) *DedupStore {
	if cap <= 0 {
		cap = DefaultDedupCap
	}
	return &DedupStore{
		cap:   cap,
		order: list.New(),
		elems: make(map[string]*list.Element),
	}
}

// Seen reports whether the key is in the set, refreshing its recency.
func (s *DedupStore) Seen(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.elems[key]
	if ok {
		s.order.MoveToFront(el)
	}
	return ok, nil
}

// Mark adds the key, evicting the least recently used entry beyond cap.
func (s *DedupStore) Mark(_ context.Context, key string) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.elems[key]; ok {
		s.order.MoveToFront(el)
		return nil
	}

	s.elems[key] = s.order.PushFront(key)
	for s.order.Len() > s.cap {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.elems, oldest.Value.(string))
	}
	return nil
}

// Remove drops the key so the pair can be re-analyzed.
func (s *DedupStore) Remove(_ context.Context, key string) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.elems[key]; ok {
		s.order.Remove(el)
		delete(s.elems, key)
	}
	return nil
}

// Len returns the current number of tracked keys.
func (s *DedupStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len(), nil
}

// Verify interface compliance at compile time.
var _ storage.DedupStore = (*DedupStore)(nil)
