// Package bucketer maintains the persistent aspect-ratio bucket index over a
// storage backend: discovery of new and removed files, concurrent bucket
// assignment, crash-safe cache persistence, minimum-bucket-size eviction and
// per-rank workload partitioning.
package bucketer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/sgaunet/aspectidx/pkg/assigner"
	"github.com/sgaunet/aspectidx/pkg/backend"
	"github.com/sgaunet/aspectidx/pkg/cachestore"
	"github.com/sgaunet/aspectidx/pkg/distributed"
	"github.com/sgaunet/aspectidx/pkg/ledger"
)

// DefaultImagePattern matches png/jpg files in any case.
const DefaultImagePattern = "*.[jJpP][pPnN][gG]"

// Options configures a Manager.
type Options struct {
	// Root is the instance data root under which images are discovered.
	Root string
	// Pattern filters discovered file names; DefaultImagePattern when empty.
	Pattern string
	// BatchSize is the consumer batch size. Buckets holding fewer images can
	// never yield a full batch and are pruned on every save.
	BatchSize int
	// Workers is the number of concurrent bucket workers.
	Workers int
	// ApplyDatasetPadding pads per-rank bucket slices to equal length.
	ApplyDatasetPadding bool
}

// Manager owns the in-memory bucket index and orchestrates
// discovery -> bucketing -> persistence over the backend.
//
// The canonical index is mutated only by the orchestrating process; workers
// return partial, unmerged state. The seen ledger is the one structure shared
// with the consumer processes.
type Manager struct {
	backend  backend.Backend
	store    *cachestore.Store
	assigner assigner.Assigner
	group    *distributed.Group
	seen     ledger.Ledger

	root         string
	pattern      string
	batchSize    int
	workers      int
	applyPadding bool

	// refreshMu serializes whole refresh/compute passes. The discovery
	// diff and the merge of pool results are separated by an unlocked
	// fan-out; without this, overlapping passes both see the same files
	// as new and double-index them.
	refreshMu sync.Mutex

	mu         sync.RWMutex
	index      map[string][]string
	discovered map[string]struct{}

	log *slog.Logger
}

// NewManager creates a manager hydrated from the persisted cache. A missing
// or corrupt cache hydrates as empty: construction never fails.
// By default the logger is set to discard.
func NewManager(
	ctx context.Context,
	b backend.Backend,
	store *cachestore.Store,
	asg assigner.Assigner,
	group *distributed.Group,
	seen ledger.Ledger,
	opts Options,
) *Manager {
	if opts.Pattern == "" {
		opts.Pattern = DefaultImagePattern
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	m := &Manager{
		backend:      b,
		store:        store,
		assigner:     asg,
		group:        group,
		seen:         seen,
		root:         opts.Root,
		pattern:      opts.Pattern,
		batchSize:    opts.BatchSize,
		workers:      opts.Workers,
		applyPadding: opts.ApplyDatasetPadding,
		log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	m.index, m.discovered = store.Load(ctx)
	return m
}

// SetLogger sets the logger
func (m *Manager) SetLogger(log *slog.Logger) {
	m.log = log
}

// Len returns the total number of images across all buckets.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, images := range m.index {
		n += len(images)
	}
	return n
}

// Buckets returns a copy of the current bucket index.
func (m *Manager) Buckets() map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]string, len(m.index))
	for bucket, images := range m.index {
		out[bucket] = append([]string{}, images...)
	}
	return out
}

// IsDiscovered reports whether ref has already been indexed, whether or not
// it was successfully bucketed.
func (m *Manager) IsDiscovered(ref string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.discovered[ref]
	return ok
}

// Stats summarizes the index for the status surface.
type Stats struct {
	Buckets    int `json:"buckets"`
	Images     int `json:"images"`
	Discovered int `json:"discovered"`
}

// Stats returns current index counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	images := 0
	for _, imgs := range m.index {
		images += len(imgs)
	}
	return Stats{
		Buckets:    len(m.index),
		Images:     images,
		Discovered: len(m.discovered),
	}
}

// DiscoverNewFiles lists every image under the root and returns those not
// already present in the discovered-file set.
func (m *Manager) DiscoverNewFiles(ctx context.Context) ([]string, error) {
	listings, err := m.backend.ListFiles(ctx, m.root, m.pattern)
	if err != nil {
		return nil, fmt.Errorf("DiscoverNewFiles: %w", err)
	}
	all := backend.FlattenListings(listings)

	m.mu.RLock()
	defer m.mu.RUnlock()
	newFiles := []string{}
	for _, file := range all {
		if _, ok := m.discovered[file]; !ok {
			newFiles = append(newFiles, file)
		}
	}
	return newFiles, nil
}

// ComputeBucketIndices discovers new files, buckets them with the worker pool
// and persists the merged index. With no new files it returns without
// touching the cache. Concurrent calls are serialized: the daemon's startup
// refresh, the cron job and the manual refresh endpoint all share one
// manager.
func (m *Manager) ComputeBucketIndices(ctx context.Context) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()
	return m.computeBucketIndices(ctx)
}

func (m *Manager) computeBucketIndices(ctx context.Context) error {
	m.log.Info("Discovering new files")
	newFiles, err := m.DiscoverNewFiles(ctx)
	if err != nil {
		return fmt.Errorf("ComputeBucketIndices: %w", err)
	}
	if len(newFiles) == 0 {
		m.log.Info("No new files discovered")
		return nil
	}

	m.mu.RLock()
	existing := m.existingRefsLocked()
	m.mu.RUnlock()

	merged := m.runWorkerPool(ctx, newFiles, existing)

	m.mu.Lock()
	defer m.mu.Unlock()
	for bucket, images := range merged {
		m.index[bucket] = append(m.index[bucket], images...)
	}
	for _, file := range newFiles {
		m.discovered[file] = struct{}{}
	}
	if err := m.saveCacheLocked(ctx); err != nil {
		return fmt.Errorf("ComputeBucketIndices: %w", err)
	}
	m.log.Info("Completed aspect bucket update", slog.Int("new_files", len(newFiles)))
	return nil
}

// existingRefsLocked returns the union of all image refs across buckets.
// The empty-index case must be guarded: union over no buckets is the empty
// set, not an error. Callers hold at least a read lock.
func (m *Manager) existingRefsLocked() map[string]struct{} {
	existing := map[string]struct{}{}
	if len(m.index) == 0 {
		return existing
	}
	for _, images := range m.index {
		for _, img := range images {
			existing[img] = struct{}{}
		}
	}
	return existing
}

// RefreshBuckets is the externally-facing sync operation: it ingests new
// arrivals, then retires entries whose files vanished from the backend.
// Whole passes are serialized with ComputeBucketIndices.
func (m *Manager) RefreshBuckets(ctx context.Context) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	m.log.Debug("Computing new file aspect bucket indices")
	if err := m.computeBucketIndices(ctx); err != nil {
		return fmt.Errorf("RefreshBuckets: %w", err)
	}

	m.log.Debug("Discovering all image files")
	listings, err := m.backend.ListFiles(ctx, m.root, m.pattern)
	if err != nil {
		return fmt.Errorf("RefreshBuckets: %w", err)
	}
	existingFiles := map[string]struct{}{}
	for _, file := range backend.FlattenListings(listings) {
		existingFiles[file] = struct{}{}
	}

	m.log.Debug("Updating bucket index with existing files")
	if err := m.UpdateBucketsWithExisting(ctx, existingFiles); err != nil {
		return fmt.Errorf("RefreshBuckets: %w", err)
	}
	m.log.Debug("Done updating bucket index")
	return nil
}

// UpdateBucketsWithExisting filters every bucket down to the images still
// present in existingFiles, then persists the index.
func (m *Manager) UpdateBucketsWithExisting(ctx context.Context, existingFiles map[string]struct{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for bucket, images := range m.index {
		kept := []string{}
		for _, img := range images {
			if _, ok := existingFiles[img]; ok {
				kept = append(kept, img)
			}
		}
		m.index[bucket] = kept
	}
	if err := m.saveCacheLocked(ctx); err != nil {
		return fmt.Errorf("UpdateBucketsWithExisting: %w", err)
	}
	return nil
}

// saveCacheLocked prunes undersized buckets and persists the cache document.
// Callers hold the write lock.
func (m *Manager) saveCacheLocked(ctx context.Context) error {
	m.enforceMinBucketSizeLocked()
	return m.store.Save(ctx, m.index, m.discovered)
}

// enforceMinBucketSizeLocked drops every bucket holding fewer images than the
// batch size. Their images stay in the discovered set so they are not
// rescanned. Callers hold the write lock.
func (m *Manager) enforceMinBucketSizeLocked() {
	for bucket, images := range m.index {
		if len(images) < m.batchSize {
			delete(m.index, bucket)
			m.log.Warn("Removed bucket due to insufficient samples",
				slog.String("bucket", bucket),
				slog.Int("samples", len(images)))
		}
	}
}

// RemoveImage removes one image from one bucket's list if present; it is a
// no-op otherwise.
func (m *Manager) RemoveImage(ref, bucket string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeImageLocked(ref, bucket)
}

func (m *Manager) removeImageLocked(ref, bucket string) {
	images, ok := m.index[bucket]
	if !ok {
		return
	}
	for i, img := range images {
		if img == ref {
			m.index[bucket] = append(images[:i:i], images[i+1:]...)
			return
		}
	}
}

// HandleIncorrectBucket moves a mis-assigned image from one bucket to
// another, creating the destination bucket if absent. Mis-bucketing indicates
// upstream drift, so both outcomes log a warning.
func (m *Manager) HandleIncorrectBucket(ref, bucket, actualBucket string) {
	m.log.Warn("Found an image in a bucket it does not belong in",
		slog.String("image", ref),
		slog.String("bucket", bucket),
		slog.String("actual_bucket", actualBucket))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeImageLocked(ref, bucket)
	if _, ok := m.index[actualBucket]; ok {
		m.log.Warn("Moved image to existing bucket", slog.String("bucket", actualBucket))
		m.index[actualBucket] = append(m.index[actualBucket], ref)
	} else {
		m.log.Warn("Created new bucket for image", slog.String("bucket", actualBucket))
		m.index[actualBucket] = []string{ref}
	}
}

// HandleSmallImage removes an undersized image from its bucket and, when
// deleteUnwanted is set, deletes the underlying file. A not-found failure on
// delete means another cooperating process got to it first and is tolerated.
func (m *Manager) HandleSmallImage(ctx context.Context, ref, bucket string, deleteUnwanted bool) error {
	if deleteUnwanted {
		m.log.Warn("Image too small: deleting and continuing search",
			slog.String("image", ref))
		if err := m.backend.Delete(ctx, ref); err != nil {
			if !backend.IsNotFound(err) {
				return fmt.Errorf("HandleSmallImage: %w", err)
			}
			m.log.Debug("Image was already deleted by another process",
				slog.String("image", ref))
		}
	} else {
		m.log.Warn("Image too small, removing from bucket only",
			slog.String("image", ref))
	}
	m.RemoveImage(ref, bucket)
	return nil
}

// SplitBucketsBetweenProcesses replaces every bucket's list with the slice
// assigned to the calling rank by the process group's agreed split.
func (m *Manager) SplitBucketsBetweenProcesses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	split := make(map[string][]string, len(m.index))
	for bucket, images := range m.index {
		split[bucket] = m.group.Split(images, m.applyPadding)
	}
	m.index = split
	m.log.Debug("Split buckets between processes",
		slog.Int("rank", m.group.Rank()),
		slog.Int("world_size", m.group.WorldSize()))
}

// MarkSeen records that a consumer pulled the image in the current run.
func (m *Manager) MarkSeen(ctx context.Context, ref string) error {
	return m.seen.MarkSeen(ctx, ref)
}

// IsSeen reports whether any cooperating consumer pulled the image already.
func (m *Manager) IsSeen(ctx context.Context, ref string) (bool, error) {
	return m.seen.IsSeen(ctx, ref)
}

// ResetSeen clears the seen ledger; called once per epoch.
func (m *Manager) ResetSeen(ctx context.Context) error {
	return m.seen.Reset(ctx)
}
