package postgres

import (
	"context"

	"base-launch-radar/internal/storage"
)

// DiscoveryStateStore is a PostgreSQL implementation of
// storage.DiscoveryStateStore. One row per factory in discovery_state;
// cursor updates are single-statement upserts, which makes them atomic.
type DiscoveryStateStore struct {
	pool *Pool
}

// NewDiscoveryStateStore creates a new PostgreSQL discovery state store.
func NewDiscoveryStateStore(pool *Pool) *DiscoveryStateStore {
	return &DiscoveryStateStore{pool: pool}
}

// GetCursor returns the last scanned block for a factory.
func (s *DiscoveryStateStore) GetCursor(ctx context.Context, factoryID string) (uint64, error) {
	if factoryID == "" {
		return 0, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT last_scanned_block
		FROM discovery_state
		WHERE factory_id = $1
	`, factoryID)

	var cursor int64
	if err := row.Scan(&cursor); err != nil {
		if isNotFoundError(err) {
			return 0, storage.ErrNotFound
		}
		return 0, err
	}

	return uint64(cursor), nil
}

// SetCursor saves the last scanned block. GREATEST keeps the cursor
// monotonic even under a racing writer.
func (s *DiscoveryStateStore) SetCursor(ctx context.Context, factoryID string, block uint64) error {
	if factoryID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO discovery_state (factory_id, last_scanned_block, enabled, updated_at)
		VALUES ($1, $2, TRUE, NOW())
		ON CONFLICT (factory_id) DO UPDATE
		SET last_scanned_block = GREATEST(discovery_state.last_scanned_block, EXCLUDED.last_scanned_block),
		    updated_at = NOW()
	`, factoryID, int64(block))

	return err
}

// AllCursors returns every persisted cursor keyed by factory id.
func (s *DiscoveryStateStore) AllCursors(ctx context.Context) (map[string]uint64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT factory_id, last_scanned_block FROM discovery_state
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cursors := make(map[string]uint64)
	for rows.Next() {
		var factoryID string
		var cursor int64
		if err := rows.Scan(&factoryID, &cursor); err != nil {
			return nil, err
		}
		cursors[factoryID] = uint64(cursor)
	}

	return cursors, rows.Err()
}

// IsEnabled reports whether discovery runs for the factory.
// Factories without a row default to enabled.
func (s *DiscoveryStateStore) IsEnabled(ctx context.Context, factoryID string) (bool, error) {
	if factoryID == "" {
		return false, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT enabled FROM discovery_state WHERE factory_id = $1
	`, factoryID)

	var enabled bool
	if err := row.Scan(&enabled); err != nil {
		if isNotFoundError(err) {
			return true, nil
		}
		return false, err
	}

	return enabled, nil
}

// SetEnabled toggles discovery for the factory.
func (s *DiscoveryStateStore) SetEnabled(ctx context.Context, factoryID string, enabled bool) error {
	if factoryID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO discovery_state (factory_id, last_scanned_block, enabled, updated_at)
		VALUES ($1, 0, $2, NOW())
		ON CONFLICT (factory_id) DO UPDATE
		SET enabled = EXCLUDED.enabled,
		    updated_at = NOW()
	`, factoryID, enabled)

	return err
}

// Verify interface compliance at compile time.
var _ storage.DiscoveryStateStore = (*DiscoveryStateStore)(nil)
