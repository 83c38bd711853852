package cachestore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgaunet/aspectidx/pkg/backend"
	"github.com/sgaunet/aspectidx/pkg/cachestore"
)

const cacheKey = "aspect_ratio_bucket_indices.json"

func newStore(t *testing.T) (*cachestore.Store, *backend.FilesystemBackend) {
	t.Helper()
	b, err := backend.NewFilesystemBackend(t.TempDir())
	require.NoError(t, err)
	return cachestore.NewStore(b, cacheKey), b
}

func TestStore_LoadAbsentCache(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	index, discovered := store.Load(ctx)
	assert.Empty(t, index)
	assert.Empty(t, discovered)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	index := map[string][]string{
		"1:1":  {"a.png", "b.png"},
		"16:9": {"c.png"},
	}
	discovered := map[string]struct{}{
		"a.png": {}, "b.png": {}, "c.png": {}, "evicted.png": {},
	}
	require.NoError(t, store.Save(ctx, index, discovered))

	gotIndex, gotDiscovered := store.Load(ctx)
	assert.Equal(t, index, gotIndex)
	assert.Equal(t, discovered, gotDiscovered)
}

func TestStore_LoadCorruptCache(t *testing.T) {
	ctx := context.Background()
	store, b := newStore(t)

	require.NoError(t, b.Write(ctx, cacheKey, []byte("{not json")))

	index, discovered := store.Load(ctx)
	assert.Empty(t, index, "a corrupt cache must load as empty, never fail")
	assert.Empty(t, discovered)
}

func TestStore_LoadMissingFields(t *testing.T) {
	ctx := context.Background()
	store, b := newStore(t)

	require.NoError(t, b.Write(ctx, cacheKey, []byte(`{}`)))

	index, discovered := store.Load(ctx)
	assert.Empty(t, index)
	assert.Empty(t, discovered)
}

func TestStore_SaveIsDeterministic(t *testing.T) {
	ctx := context.Background()
	store, b := newStore(t)

	index := map[string][]string{"1:1": {"a.png", "b.png"}}
	discovered := map[string]struct{}{"b.png": {}, "a.png": {}}

	require.NoError(t, store.Save(ctx, index, discovered))
	first, err := b.Read(ctx, cacheKey)
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, index, discovered))
	second, err := b.Read(ctx, cacheKey)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
