package bucketer

import (
	"context"
	"log/slog"
	"sync"
)

// progressLogInterval is how many processed files pass between progress logs.
const progressLogInterval = 100

// runWorkerPool fans files out across the configured number of workers and
// merges their partial indices. Each worker emits one progress unit per file
// and one partial index when its shard completes; the aggregation loop drains
// both channels until every buffered message has been consumed, so nothing is
// dropped when producers finish first.
func (m *Manager) runWorkerPool(ctx context.Context, files []string, existing map[string]struct{}) map[string][]string {
	shards := splitShards(files, m.workers)

	progressCh := make(chan int, len(files))
	resultsCh := make(chan map[string][]string, len(shards))

	var wg sync.WaitGroup
	for _, shard := range shards {
		wg.Add(1)
		go func(shard []string) {
			defer wg.Done()
			m.bucketWorker(ctx, shard, existing, progressCh, resultsCh)
		}(shard)
	}

	// Closing after the join barrier guarantees every send has happened;
	// the aggregation loop then drains the remaining buffered messages.
	go func() {
		wg.Wait()
		close(progressCh)
		close(resultsCh)
	}()

	merged := map[string][]string{}
	processed := 0
	total := len(files)
	for progressCh != nil || resultsCh != nil {
		select {
		case n, ok := <-progressCh:
			if !ok {
				progressCh = nil
				continue
			}
			processed += n
			if processed%progressLogInterval == 0 || processed == total {
				m.log.Info("Bucketing progress",
					slog.Int("processed", processed),
					slog.Int("total", total))
			}
		case partial, ok := <-resultsCh:
			if !ok {
				resultsCh = nil
				continue
			}
			for bucket, images := range partial {
				merged[bucket] = append(merged[bucket], images...)
			}
		}
	}
	return merged
}

// bucketWorker buckets one shard of files into a worker-local partial index.
// A single file's assignment failure never aborts the shard: large corpora
// always contain some bad files, which are skipped and left unbucketed.
func (m *Manager) bucketWorker(
	ctx context.Context,
	files []string,
	existing map[string]struct{},
	progressCh chan<- int,
	resultsCh chan<- map[string][]string,
) {
	local := map[string][]string{}
	for _, file := range files {
		if _, ok := existing[file]; !ok {
			bucket, err := m.assigner.AssignBucket(ctx, m.backend, file)
			if err != nil {
				m.log.Warn("Skipping image that could not be bucketed",
					slog.String("image", file),
					slog.String("error", err.Error()))
			} else {
				local[bucket] = append(local[bucket], file)
			}
		}
		progressCh <- 1
	}
	resultsCh <- local
}

// splitShards splits files into at most n contiguous shards whose sizes
// differ by at most one.
func splitShards(files []string, n int) [][]string {
	if len(files) == 0 {
		return nil
	}
	if n < 1 {
		n = 1
	}
	if n > len(files) {
		n = len(files)
	}
	shards := make([][]string, 0, n)
	base := len(files) / n
	rem := len(files) % n
	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		shards = append(shards, files[start:start+size])
		start += size
	}
	return shards
}
