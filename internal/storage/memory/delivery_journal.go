package memory

import (
	"context"
	"fmt"
	"sync"

	"base-launch-radar/internal/domain"
	"base-launch-radar/internal/storage"
)

// DeliveryJournal is an in-memory implementation of storage.DeliveryJournal.
type DeliveryJournal struct {
	mu       sync.RWMutex
	attempts map[string]*domain.DeliveryAttempt // keyed by alertID|subscriberID
	dead     map[int64]bool
}

// NewDeliveryJournal creates a new in-memory delivery journal.
func NewDeliveryJournal() *DeliveryJournal {
	return &DeliveryJournal{
		attempts: make(map[string]*domain.DeliveryAttempt),
		dead:     make(map[int64]bool),
	}
}

func attemptKey(alertID string, subscriberID int64) string {
	return fmt.Sprintf("%s|%d", alertID, subscriberID)
}

// Get returns the attempt for (alertID, subscriberID).
func (j *DeliveryJournal) Get(_ context.Context, alertID string, subscriberID int64) (*domain.DeliveryAttempt, error) {
	if alertID == "" {
		return nil, storage.ErrInvalidInput
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	a, ok := j.attempts[attemptKey(alertID, subscriberID)]
	if !ok {
		return nil, storage.ErrNotFound
	}

	// Return a copy
	attemptCopy := *a
	return &attemptCopy, nil
}

// Record upserts the attempt. Final states are never overwritten.
func (j *DeliveryJournal) Record(_ context.Context, a *domain.DeliveryAttempt) error {
	if a == nil || a.AlertID == "" {
		return storage.ErrInvalidInput
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	key := attemptKey(a.AlertID, a.SubscriberID)
	if prev, ok := j.attempts[key]; ok && prev.State.Final() {
		return storage.ErrFinalState
	}

	attemptCopy := *a
	j.attempts[key] = &attemptCopy
	return nil
}

// MarkSubscriberDead adds the subscriber to the dead set.
func (j *DeliveryJournal) MarkSubscriberDead(_ context.Context, subscriberID int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.dead[subscriberID] = true
	return nil
}

// IsSubscriberDead reports whether the subscriber was marked dead.
func (j *DeliveryJournal) IsSubscriberDead(_ context.Context, subscriberID int64) (bool, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.dead[subscriberID], nil
}

// Verify interface compliance at compile time.
var _ storage.DeliveryJournal = (*DeliveryJournal)(nil)
