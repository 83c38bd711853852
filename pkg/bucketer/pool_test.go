package bucketer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgaunet/aspectidx/pkg/assigner"
	"github.com/sgaunet/aspectidx/pkg/backend"
)

func TestSplitShards(t *testing.T) {
	testCases := []struct {
		name     string
		files    int
		workers  int
		expected []int
	}{
		{name: "even split", files: 8, workers: 4, expected: []int{2, 2, 2, 2}},
		{name: "uneven split", files: 10, workers: 4, expected: []int{3, 3, 2, 2}},
		{name: "fewer files than workers", files: 3, workers: 8, expected: []int{1, 1, 1}},
		{name: "single worker", files: 5, workers: 1, expected: []int{5}},
		{name: "no files", files: 0, workers: 8, expected: []int{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			files := make([]string, tc.files)
			for i := range files {
				files[i] = fmt.Sprintf("img-%d.png", i)
			}
			shards := splitShards(files, tc.workers)

			sizes := make([]int, 0, len(shards))
			flat := make([]string, 0, tc.files)
			for _, shard := range shards {
				sizes = append(sizes, len(shard))
				flat = append(flat, shard...)
			}
			assert.ElementsMatch(t, tc.expected, sizes)
			// Shards are contiguous: concatenation restores the input.
			assert.Equal(t, files, flat)
		})
	}
}

func poolManager(t *testing.T, asg assigner.Assigner, workers int) *Manager {
	t.Helper()
	b, err := backend.NewFilesystemBackend(t.TempDir())
	require.NoError(t, err)
	return &Manager{
		backend:  b,
		assigner: asg,
		workers:  workers,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestRunWorkerPool_MergesAllPartials(t *testing.T) {
	ctx := context.Background()
	asg := assigner.Func(func(_ context.Context, _ backend.Backend, ref string) (string, error) {
		return "1:1", nil
	})
	m := poolManager(t, asg, 8)

	files := make([]string, 250)
	for i := range files {
		files[i] = fmt.Sprintf("img-%d.png", i)
	}
	merged := m.runWorkerPool(ctx, files, map[string]struct{}{})

	// No message may be dropped even though producers finish before the
	// aggregation loop's final drain.
	assert.Len(t, merged["1:1"], 250)
	assert.ElementsMatch(t, files, merged["1:1"])
}

func TestRunWorkerPool_SkipsExisting(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	asg := assigner.Func(func(_ context.Context, _ backend.Backend, ref string) (string, error) {
		calls.Add(1)
		return "1:1", nil
	})
	m := poolManager(t, asg, 4)

	files := []string{"a.png", "b.png", "c.png"}
	existing := map[string]struct{}{"b.png": {}}
	merged := m.runWorkerPool(ctx, files, existing)

	assert.Equal(t, int32(2), calls.Load(), "already-indexed files must not reach the assigner")
	assert.ElementsMatch(t, []string{"a.png", "c.png"}, merged["1:1"])
}

func TestRunWorkerPool_FailuresDoNotAbortShard(t *testing.T) {
	ctx := context.Background()
	asg := assigner.Func(func(_ context.Context, _ backend.Backend, ref string) (string, error) {
		if ref == "bad.png" {
			return "", errors.New("cannot decode image")
		}
		return "1:1", nil
	})
	m := poolManager(t, asg, 2)

	merged := m.runWorkerPool(ctx, []string{"a.png", "bad.png", "b.png"}, map[string]struct{}{})
	assert.ElementsMatch(t, []string{"a.png", "b.png"}, merged["1:1"])
}

func TestRunWorkerPool_MoreWorkersThanFiles(t *testing.T) {
	ctx := context.Background()
	asg := assigner.Func(func(_ context.Context, _ backend.Backend, ref string) (string, error) {
		return "4:3", nil
	})
	m := poolManager(t, asg, 16)

	merged := m.runWorkerPool(ctx, []string{"only.png"}, map[string]struct{}{})
	assert.Equal(t, []string{"only.png"}, merged["4:3"])
}
