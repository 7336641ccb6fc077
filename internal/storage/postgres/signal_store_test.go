package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-sweep-lab/internal/domain"
	"signal-sweep-lab/internal/storage"
)

func TestSignalStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSignalStore(pool)
	ctx := context.Background()

	sig := &domain.Signal{
		ID:        42,
		Symbol:    "BTCUSDT",
		Timestamp: 1704067200000,
		Direction: domain.DirectionLong,
	}
	require.NoError(t, store.Insert(ctx, sig))

	got, err := store.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, sig.Symbol, got.Symbol)
	assert.Equal(t, sig.Timestamp, got.Timestamp)
	assert.Equal(t, sig.Direction, got.Direction)

	err = store.Insert(ctx, sig)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSignalStore_BulkAndTimeRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSignalStore(pool)
	ctx := context.Background()

	signals := []*domain.Signal{
		{ID: 3, Symbol: "BTCUSDT", Timestamp: 300, Direction: domain.DirectionLong},
		{ID: 1, Symbol: "BTCUSDT", Timestamp: 100, Direction: domain.DirectionShort},
		{ID: 2, Symbol: "ETHUSDT", Timestamp: 200, Direction: domain.DirectionLong},
	}
	require.NoError(t, store.InsertBulk(ctx, signals))

	got, err := store.GetByTimeRange(ctx, 100, 200)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(2), got[1].ID)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(1), all[0].ID)
	assert.Equal(t, int64(3), all[2].ID)

	// A batch with one duplicate rolls back entirely.
	err = store.InsertBulk(ctx, []*domain.Signal{
		{ID: 4, Symbol: "BTCUSDT", Timestamp: 400, Direction: domain.DirectionLong},
		{ID: 1, Symbol: "BTCUSDT", Timestamp: 100, Direction: domain.DirectionShort},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, 4)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
