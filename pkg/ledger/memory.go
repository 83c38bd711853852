package ledger

import (
	"context"
	"sync"
)

// MemoryLedger is an in-process Ledger for single-process runs.
type MemoryLedger struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{seen: map[string]struct{}{}}
}

// MarkSeen marks an image as seen.
func (l *MemoryLedger) MarkSeen(_ context.Context, ref string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[ref] = struct{}{}
	return nil
}

// IsSeen checks if an image is seen.
func (l *MemoryLedger) IsSeen(_ context.Context, ref string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.seen[ref]
	return ok, nil
}

// Reset clears all entries.
func (l *MemoryLedger) Reset(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = map[string]struct{}{}
	return nil
}
