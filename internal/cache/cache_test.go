package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "greeting", []byte("hello"), time.Minute))
	require.NoError(t, store.Set(ctx, "forever", []byte("x"), 0))

	val, ok, err := store.Get(ctx, "greeting")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello", string(val))

	now = now.Add(time.Minute)
	_, ok, err = store.Get(ctx, "greeting")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, _ = store.Get(ctx, "forever")
	require.True(t, ok)
	require.Equal(t, 1, store.Len())
}

func TestMemoryStoreEvictAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), time.Hour))
	now = now.Add(2 * time.Second)
	store.evict()
	require.Equal(t, 1, store.Len())

	require.NoError(t, store.Delete(ctx, "b"))
	require.Equal(t, 0, store.Len())
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	type board struct {
		Leader string `json:"leader"`
	}

	require.NoError(t, SetJSON(ctx, store, "board", board{Leader: "ada"}, time.Minute))

	var got board
	ok, err := GetJSON(ctx, store, "board", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "ada", got.Leader)

	ok, err = GetJSON(ctx, store, "missing", &got)
	require.NoError(t, err)
	require.False(t, ok)
}
