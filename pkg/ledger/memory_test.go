package ledger_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgaunet/aspectidx/pkg/ledger"
)

func TestMemoryLedger_MarkAndCheck(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemoryLedger()

	seen, err := l.IsSeen(ctx, "a.png")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, l.MarkSeen(ctx, "a.png"))

	seen, err = l.IsSeen(ctx, "a.png")
	require.NoError(t, err)
	assert.True(t, seen)

	// Marking twice keeps the entry seen.
	require.NoError(t, l.MarkSeen(ctx, "a.png"))
	seen, err = l.IsSeen(ctx, "a.png")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMemoryLedger_Reset(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemoryLedger()

	require.NoError(t, l.MarkSeen(ctx, "a.png"))
	require.NoError(t, l.Reset(ctx))

	seen, err := l.IsSeen(ctx, "a.png")
	require.NoError(t, err)
	assert.False(t, seen, "Reset must clear all entries")
}

func TestMemoryLedger_ConcurrentMark(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemoryLedger()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ref := fmt.Sprintf("img-%d-%d.png", n, j)
				_ = l.MarkSeen(ctx, ref)
				_, _ = l.IsSeen(ctx, ref)
			}
		}(i)
	}
	wg.Wait()

	seen, err := l.IsSeen(ctx, "img-0-0.png")
	require.NoError(t, err)
	assert.True(t, seen)
}
