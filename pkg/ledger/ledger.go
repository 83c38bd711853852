// Package ledger tracks which images the cooperating consumer processes have
// already pulled in the current run. Entries are monotonic within a run: once
// marked seen, an image stays seen until an explicit reset. Nothing is
// persisted across runs.
package ledger

import "context"

// Ledger is the shared seen-image set. Implementations must be safe for
// concurrent use without external locking by callers.
type Ledger interface {
	MarkSeen(ctx context.Context, ref string) error
	IsSeen(ctx context.Context, ref string) (bool, error)
	// Reset clears all entries; the consumer calls it once per epoch.
	Reset(ctx context.Context) error
}
