package postgres

import (
	"context"

	"base-launch-radar/internal/storage"
)

// DedupStore is a PostgreSQL implementation of storage.DedupStore.
// Keys live in dedup_ring with a touched_at column; Mark prunes the oldest
// rows beyond cap, which keeps the horizon bounded the same way the
// in-memory LRU does.
type DedupStore struct {
	pool *Pool
	cap  int
}

// NewDedupStore creates a new PostgreSQL dedup store with the given cap.
func NewDedupStore(pool *Pool, cap int) *DedupStore {
	if cap <= 0 {
		cap = 50_000
	}
	return &DedupStore{pool: pool, cap: cap}
}

// Seen reports whether the key is in the set, refreshing its recency.
func (s *DedupStore) Seen(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE dedup_ring SET touched_at = NOW() WHERE key = $1
	`, key)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

// Mark adds the key and prunes entries beyond cap, oldest first.
func (s *DedupStore) Mark(ctx context.Context, key string) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO dedup_ring (key, touched_at)
		VALUES ($1, NOW())
		ON CONFLICT (key) DO UPDATE SET touched_at = NOW()
	`, key)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		DELETE FROM dedup_ring
		WHERE key IN (
			SELECT key FROM dedup_ring
			ORDER BY touched_at DESC
			OFFSET $1
		)
	`, s.cap)

	return err
}

// Remove drops the key so the pair can be re-analyzed.
func (s *DedupStore) Remove(ctx context.Context, key string) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `DELETE FROM dedup_ring WHERE key = $1`, key)
	return err
}

// Len returns the current number of tracked keys.
func (s *DedupStore) Len(ctx context.Context) (int, error) {
	row := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dedup_ring`)

	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Verify interface compliance at compile time.
var _ storage.DedupStore = (*DedupStore)(nil)
