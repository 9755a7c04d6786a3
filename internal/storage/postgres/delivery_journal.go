package postgres

import (
	"context"

	"base-launch-radar/internal/domain"
	"base-launch-radar/internal/storage"
)

// DeliveryJournal is a PostgreSQL implementation of storage.DeliveryJournal.
// delivery_attempts is keyed by (alert_id, subscriber_id); the upsert refuses
// to touch rows already in a final state, enforcing the no-overwrite
// invariant in a single statement.
type DeliveryJournal struct {
	pool *Pool
}

// NewDeliveryJournal creates a new PostgreSQL delivery journal.
func NewDeliveryJournal(pool *Pool) *DeliveryJournal {
	return &DeliveryJournal{pool: pool}
}

// Get returns the attempt for (alertID, subscriberID).
func (j *DeliveryJournal) Get(ctx context.Context, alertID string, subscriberID int64) (*domain.DeliveryAttempt, error) {
	if alertID == "" {
		return nil, storage.ErrInvalidInput
	}

	row := j.pool.QueryRow(ctx, `
		SELECT alert_id, subscriber_id, state, tries, next_try_at_ms
		FROM delivery_attempts
		WHERE alert_id = $1 AND subscriber_id = $2
	`, alertID, subscriberID)

	var a domain.DeliveryAttempt
	var state string
	if err := row.Scan(&a.AlertID, &a.SubscriberID, &state, &a.Tries, &a.NextTryAt); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	a.State = domain.DeliveryState(state)

	return &a, nil
}

// Record upserts the attempt. Final states are never overwritten.
func (j *DeliveryJournal) Record(ctx context.Context, a *domain.DeliveryAttempt) error {
	if a == nil || a.AlertID == "" {
		return storage.ErrInvalidInput
	}

	tag, err := j.pool.Exec(ctx, `
		INSERT INTO delivery_attempts (alert_id, subscriber_id, state, tries, next_try_at_ms, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (alert_id, subscriber_id) DO UPDATE
		SET state = EXCLUDED.state,
		    tries = EXCLUDED.tries,
		    next_try_at_ms = EXCLUDED.next_try_at_ms,
		    updated_at = NOW()
		WHERE delivery_attempts.state NOT IN ('sent', 'dead')
	`, a.AlertID, a.SubscriberID, string(a.State), a.Tries, a.NextTryAt)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrFinalState
	}
	return nil
}

// MarkSubscriberDead adds the subscriber to the dead set.
func (j *DeliveryJournal) MarkSubscriberDead(ctx context.Context, subscriberID int64) error {
	_, err := j.pool.Exec(ctx, `
		INSERT INTO dead_subscribers (subscriber_id, marked_at)
		VALUES ($1, NOW())
		ON CONFLICT (subscriber_id) DO NOTHING
	`, subscriberID)

	return err
}

// IsSubscriberDead reports whether the subscriber was marked dead.
func (j *DeliveryJournal) IsSubscriberDead(ctx context.Context, subscriberID int64) (bool, error) {
	row := j.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM dead_subscribers WHERE subscriber_id = $1)
	`, subscriberID)

	var dead bool
	if err := row.Scan(&dead); err != nil {
		return false, err
	}

	return dead, nil
}

// Verify interface compliance at compile time.
var _ storage.DeliveryJournal = (*DeliveryJournal)(nil)
