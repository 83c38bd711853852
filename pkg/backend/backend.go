// Package backend defines the flat-namespace storage contract the bucket
// index runs over, with S3 and local filesystem implementations.
package backend

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read and Delete when the key does not exist.
// Callers that tolerate concurrent deletion must test for it with IsNotFound
// instead of swallowing every error.
var ErrNotFound = errors.New("object not found")

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// DirListing is one directory of a hierarchical file listing.
type DirListing struct {
	Dir     string
	Subdirs []string
	Files   []string
}

// Backend is the storage contract.
//
// Exists never returns an error: any lookup failure reads as absence.
// ListByPrefix and ListFiles return empty slices, never nil results, when
// nothing matches.
type Backend interface {
	Exists(ctx context.Context, key string) bool
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	ListByPrefix(ctx context.Context, prefix string) ([]string, error)
	// ListFiles lists files under root whose base name matches the
	// glob-style pattern.
	ListFiles(ctx context.Context, root, pattern string) ([]DirListing, error)
}

// FlattenListings collects every file of a hierarchical listing into one slice.
func FlattenListings(listings []DirListing) []string {
	files := []string{}
	for _, l := range listings {
		files = append(files, l.Files...)
	}
	return files
}
