package postgres

import (
	"context"

	"base-launch-radar/internal/domain"
	"base-launch-radar/internal/storage"
)

// SubscriberStore is a PostgreSQL implementation of storage.SubscriberStore.
// The subscribers table is written by the account subsystem; the pipeline
// only reads snapshots from it.
type SubscriberStore struct {
	pool *Pool
}

// NewSubscriberStore creates a new PostgreSQL subscriber store.
func NewSubscriberStore(pool *Pool) *SubscriberStore {
	return &SubscriberStore{pool: pool}
}

// Snapshot returns all subscribers.
func (s *SubscriberStore) Snapshot(ctx context.Context) ([]*domain.Subscriber, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT subscriber_id, channel, priority, alerts_enabled
		FROM subscribers
		ORDER BY subscriber_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*domain.Subscriber
	for rows.Next() {
		var sub domain.Subscriber
		var channel, priority string
		if err := rows.Scan(&sub.SubscriberID, &channel, &priority, &sub.AlertsEnabled); err != nil {
			return nil, err
		}
		sub.Channel = domain.Channel(channel)
		sub.Priority = domain.Priority(priority)
		subs = append(subs, &sub)
	}

	return subs, rows.Err()
}

// Verify interface compliance at compile time.
var _ storage.SubscriberStore = (*SubscriberStore)(nil)
