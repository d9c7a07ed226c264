package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()

	first, err := store.MarkProcessed(ctx, "delivery-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	// A redelivery with the same ID is rejected.
	second, err := store.MarkProcessed(ctx, "delivery-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, second)

	other, err := store.MarkProcessed(ctx, "delivery-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, other)
}

func TestInMemoryIdempotencyStore_IsProcessed(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()

	processed, err := store.IsProcessed(ctx, "delivery-1")
	require.NoError(t, err)
	assert.False(t, processed)

	_, err = store.MarkProcessed(ctx, "delivery-1", time.Minute)
	require.NoError(t, err)

	processed, err = store.IsProcessed(ctx, "delivery-1")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInMemoryIdempotencyStore_TTLExpiry(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, "delivery-1", 10*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	processed, err := store.IsProcessed(ctx, "delivery-1")
	require.NoError(t, err)
	assert.False(t, processed)

	// After expiry the delivery can be marked again.
	again, err := store.MarkProcessed(ctx, "delivery-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, again)
}

func TestInMemoryIdempotencyStore_CloseIsIdempotent(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestInMemoryIdempotencyStore_Cleanup(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()
	_, err := store.MarkProcessed(ctx, "delivery-1", time.Nanosecond)
	require.NoError(t, err)
	_, err = store.MarkProcessed(ctx, "delivery-2", time.Hour)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	store.cleanup()
	assert.Equal(t, 1, store.Size())
}
