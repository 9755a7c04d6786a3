package storage

import (
	"context"

	"base-launch-radar/internal/domain"
)

// DiscoveryStateStore persists per-factory discovery state: the scan cursor
// and the enabled flag. Cursors are monotonic non-decreasing and are written
// only after every candidate up to that block has been accepted downstream.
type DiscoveryStateStore interface {
	// GetCursor returns the last scanned block for a factory.
	// Returns ErrNotFound if the factory has no cursor yet.
	GetCursor(ctx context.Context, factoryID string) (uint64, error)

	// SetCursor saves the last scanned block. The write must be atomic.
	SetCursor(ctx context.Context, factoryID string, block uint64) error

	// AllCursors returns every persisted cursor keyed by factory id.
	AllCursors(ctx context.Context) (map[string]uint64, error)

	// IsEnabled reports whether discovery runs for the factory.
	// Factories with no persisted row default to enabled.
	IsEnabled(ctx context.Context, factoryID string) (bool, error)

	// SetEnabled toggles discovery for the factory.
	SetEnabled(ctx context.Context, factoryID string, enabled bool) error
}

// DedupStore is the bounded set of already-dispatched candidate keys.
// Keys are kept for a bounded horizon (LRU, cap 50_000 by default) so that
// re-emitted candidates after a crash do not produce duplicate alerts.
type DedupStore interface {
	// Seen reports whether the key is in the set, refreshing its recency.
	Seen(ctx context.Context, key string) (bool, error)

	// Mark adds the key, evicting the least recently used entry beyond cap.
	Mark(ctx context.Context, key string) error

	// Remove drops the key so the pair can be re-analyzed (operator recheck).
	Remove(ctx context.Context, key string) error

	// Len returns the current number of tracked keys.
	Len(ctx context.Context) (int, error)
}

// DeliveryJournal persists delivery attempts and the dead-subscriber set.
// (AlertID, SubscriberID) is unique; once an attempt reaches a final state
// (sent or dead) no write changes it.
type DeliveryJournal interface {
	// Get returns the attempt for (alertID, subscriberID).
	// Returns ErrNotFound if no attempt was recorded.
	Get(ctx context.Context, alertID string, subscriberID int64) (*domain.DeliveryAttempt, error)

	// Record upserts the attempt. Returns ErrFinalState if the stored
	// attempt is already sent or dead.
	Record(ctx context.Context, a *domain.DeliveryAttempt) error

	// MarkSubscriberDead adds the subscriber to the dead set. Subsequent
	// alerts skip dead subscribers.
	MarkSubscriberDead(ctx context.Context, subscriberID int64) error

	// IsSubscriberDead reports whether the subscriber was marked dead.
	IsSubscriberDead(ctx context.Context, subscriberID int64) (bool, error)
}

// SubscriberStore reads the subscriber snapshot. Subscriber accounts are
// owned outside the core; the dispatcher takes one snapshot per dispatch.
type SubscriberStore interface {
	// Snapshot returns all subscribers.
	Snapshot(ctx context.Context) ([]*domain.Subscriber, error)
}

// AlertArchive is the append-only history of dispatched alerts, read back by
// the operator recheck command.
type AlertArchive interface {
	// Insert appends a dispatched alert.
	Insert(ctx context.Context, a *domain.Alert) error

	// LatestForPair returns the most recent archived alert for a pair.
	// Returns ErrNotFound when the pair was never alerted.
	LatestForPair(ctx context.Context, pair string) (*domain.Alert, error)
}
