package backend_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgaunet/aspectidx/pkg/backend"
)

func newBackend(t *testing.T) *backend.FilesystemBackend {
	t.Helper()
	b, err := backend.NewFilesystemBackend(t.TempDir())
	require.NoError(t, err)
	return b
}

func TestFilesystemBackend_WriteReadDelete(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	require.NoError(t, b.Write(ctx, "datasets/a.png", []byte("payload")))

	assert.True(t, b.Exists(ctx, "datasets/a.png"))
	assert.False(t, b.Exists(ctx, "datasets/missing.png"))

	data, err := b.Read(ctx, "datasets/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	require.NoError(t, b.Delete(ctx, "datasets/a.png"))
	assert.False(t, b.Exists(ctx, "datasets/a.png"))
}

func TestFilesystemBackend_NotFoundClassification(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	_, err := b.Read(ctx, "missing.png")
	assert.True(t, backend.IsNotFound(err), "Read on a missing key must classify as not found")

	err = b.Delete(ctx, "missing.png")
	assert.True(t, backend.IsNotFound(err), "Delete on a missing key must classify as not found")
}

func TestFilesystemBackend_Overwrite(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	require.NoError(t, b.Write(ctx, "k", []byte("one")))
	require.NoError(t, b.Write(ctx, "k", []byte("two")))

	data, err := b.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)
}

func TestFilesystemBackend_ListByPrefix(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	require.NoError(t, b.Write(ctx, "datasets/a.png", nil))
	require.NoError(t, b.Write(ctx, "datasets/sub/b.jpg", nil))
	require.NoError(t, b.Write(ctx, "other/c.png", nil))

	keys, err := b.ListByPrefix(ctx, "datasets/")
	require.NoError(t, err)
	assert.Equal(t, []string{"datasets/a.png", "datasets/sub/b.jpg"}, keys)

	keys, err = b.ListByPrefix(ctx, "nothing/")
	require.NoError(t, err)
	assert.NotNil(t, keys, "ListByPrefix must return an empty slice, never nil")
	assert.Empty(t, keys)
}

func TestFilesystemBackend_ListFiles(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	require.NoError(t, b.Write(ctx, "datasets/a.png", nil))
	require.NoError(t, b.Write(ctx, "datasets/b.JPG", nil))
	require.NoError(t, b.Write(ctx, "datasets/notes.txt", nil))
	require.NoError(t, b.Write(ctx, "datasets/sub/c.jpg", nil))

	listings, err := b.ListFiles(ctx, "datasets", "*.[jJpP][pPnN][gG]")
	require.NoError(t, err)

	files := backend.FlattenListings(listings)
	assert.ElementsMatch(t, []string{"datasets/a.png", "datasets/b.JPG", "datasets/sub/c.jpg"}, files)
}

func TestFilesystemBackend_ListFiles_MissingRoot(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	listings, err := b.ListFiles(ctx, "absent", "*.png")
	require.NoError(t, err)
	assert.Empty(t, backend.FlattenListings(listings))
}

func TestFilesystemBackend_PathTraversal(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	_, err := b.Read(ctx, "../outside")
	assert.ErrorIs(t, err, backend.ErrPathTraversal)
}
