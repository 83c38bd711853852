// Package cachestore persists the bucket index as a single JSON document in
// the storage backend.
package cachestore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/sgaunet/aspectidx/pkg/backend"
)

// Document is the persisted cache format: the bucket mapping and the set of
// files already discovered. Unknown or missing fields default to empty.
type Document struct {
	AspectRatioBucketIndices map[string][]string `json:"aspect_ratio_bucket_indices"`
	InstanceImagesPath       []string            `json:"instance_images_path"`
}

// Store reads and writes the cache document under a fixed backend key.
type Store struct {
	backend  backend.Backend
	cacheKey string
	log      *slog.Logger
}

// NewStore creates a new cache store.
// By default the logger is set to discard.
func NewStore(b backend.Backend, cacheKey string) *Store {
	return &Store{
		backend:  b,
		cacheKey: cacheKey,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger
func (s *Store) SetLogger(log *slog.Logger) {
	s.log = log
}

// Load hydrates the bucket index and the discovered-file set from the backend.
// An absent or unparseable cache yields empty structures: a corrupt cache is
// recoverable, never fatal.
func (s *Store) Load(ctx context.Context) (map[string][]string, map[string]struct{}) {
	index := map[string][]string{}
	discovered := map[string]struct{}{}

	if !s.backend.Exists(ctx, s.cacheKey) {
		return index, discovered
	}

	raw, err := s.backend.Read(ctx, s.cacheKey)
	if err != nil {
		s.log.Warn("Error loading aspect bucket cache, creating new one",
			slog.String("error", err.Error()))
		return index, discovered
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.log.Warn("Error loading aspect bucket cache, creating new one",
			slog.String("error", err.Error()))
		return index, discovered
	}

	for bucket, images := range doc.AspectRatioBucketIndices {
		index[bucket] = append([]string{}, images...)
	}
	for _, img := range doc.InstanceImagesPath {
		discovered[img] = struct{}{}
	}
	return index, discovered
}

// Save encodes the bucket index and the discovered-file set into one document
// and writes it to the backend in a single call. Save persists exactly what
// it is given: minimum-bucket-size pruning is applied by the bucket manager
// before every save, so undersized buckets never reach the store on that
// path. Direct callers own that invariant themselves.
func (s *Store) Save(ctx context.Context, index map[string][]string, discovered map[string]struct{}) error {
	doc := Document{
		AspectRatioBucketIndices: map[string][]string{},
		InstanceImagesPath:       make([]string, 0, len(discovered)),
	}
	for bucket, images := range index {
		doc.AspectRatioBucketIndices[bucket] = append([]string{}, images...)
	}
	for img := range discovered {
		doc.InstanceImagesPath = append(doc.InstanceImagesPath, img)
	}
	// Deterministic output so identical state persists byte-identically.
	sort.Strings(doc.InstanceImagesPath)

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("Save: failed to encode cache document: %w", err)
	}
	if err := s.backend.Write(ctx, s.cacheKey, raw); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	s.log.Debug("Saved bucket index cache",
		slog.String("key", s.cacheKey),
		slog.Int("buckets", len(index)),
		slog.Int("discovered", len(discovered)))
	return nil
}
