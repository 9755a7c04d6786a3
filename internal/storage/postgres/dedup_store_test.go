package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupStore_MarkAndSeen(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDedupStore(pool, 100)

	seen, err := store.Seen(ctx, "base-uni-v2|0xAAAA")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.Mark(ctx, "base-uni-v2|0xAAAA"))

	seen, err = store.Seen(ctx, "base-uni-v2|0xAAAA")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestDedupStore_Remove(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDedupStore(pool, 100)

	require.NoError(t, store.Mark(ctx, "base-uni-v2|0xAAAA"))
	require.NoError(t, store.Remove(ctx, "base-uni-v2|0xAAAA"))

	seen, err := store.Seen(ctx, "base-uni-v2|0xAAAA")
	require.NoError(t, err)
	assert.False(t, seen, "removed keys can be dispatched again")
}

func TestDedupStore_PrunesBeyondCap(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDedupStore(pool, 5)

	for i := 0; i < 8; i++ {
		require.NoError(t, store.Mark(ctx, fmt.Sprintf("base-uni-v2|0x%04d", i)))
	}

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	// the most recently marked keys survive
	seen, err := store.Seen(ctx, "base-uni-v2|0x0007")
	require.NoError(t, err)
	assert.True(t, seen)
}
