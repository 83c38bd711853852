package backend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// ErrPathTraversal is returned when a key escapes the backend base directory.
var ErrPathTraversal = errors.New("invalid key: path traversal detected")

// FilesystemBackend implements Backend over a local directory. Keys are
// slash-separated paths relative to the base directory.
type FilesystemBackend struct {
	baseDir string
}

// NewFilesystemBackend creates a new filesystem backend rooted at baseDir.
func NewFilesystemBackend(baseDir string) (*FilesystemBackend, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FilesystemBackend{baseDir: baseDir}, nil
}

// resolve maps a key to an absolute path, rejecting traversal outside baseDir.
func (b *FilesystemBackend) resolve(key string) (string, error) {
	p := filepath.Join(b.baseDir, filepath.FromSlash(key))
	if !strings.HasPrefix(filepath.Clean(p), filepath.Clean(b.baseDir)) {
		return "", ErrPathTraversal
	}
	return p, nil
}

// Exists checks if a file exists at the given key.
func (b *FilesystemBackend) Exists(_ context.Context, key string) bool {
	p, err := b.resolve(key)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// Read returns the full content of the file at the given key.
func (b *FilesystemBackend) Read(_ context.Context, key string) ([]byte, error) {
	p, err := b.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("Read: key %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("Read: failed to read file: %w", err)
	}
	return data, nil
}

// Write stores data at the given key, creating parent directories as needed.
func (b *FilesystemBackend) Write(_ context.Context, key string, data []byte) error {
	p, err := b.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("Write: failed to create parent directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("Write: failed to write file: %w", err)
	}
	return nil
}

// Delete removes the file at the given key.
func (b *FilesystemBackend) Delete(_ context.Context, key string) error {
	p, err := b.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("Delete: key %s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("Delete: failed to remove file: %w", err)
	}
	return nil
}

// ListByPrefix lists every key under the backend root starting with prefix.
func (b *FilesystemBackend) ListByPrefix(_ context.Context, prefix string) ([]string, error) {
	keys := []string{}
	err := filepath.WalkDir(b.baseDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.baseDir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ListByPrefix: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// ListFiles walks the tree under root and returns one listing per directory,
// with files filtered down to those whose base name matches pattern.
func (b *FilesystemBackend) ListFiles(_ context.Context, root, pattern string) ([]DirListing, error) {
	start, err := b.resolve(root)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(start); os.IsNotExist(err) {
		return []DirListing{}, nil
	}

	byDir := map[string]*DirListing{}
	order := []string{}
	err = filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(b.baseDir, p)
		if rerr != nil {
			return rerr
		}
		key := filepath.ToSlash(rel)
		if d.IsDir() {
			if _, ok := byDir[key]; !ok {
				byDir[key] = &DirListing{Dir: key, Subdirs: []string{}, Files: []string{}}
				order = append(order, key)
			}
			parent := path.Dir(key)
			if l, ok := byDir[parent]; ok && parent != key {
				l.Subdirs = append(l.Subdirs, key)
			}
			return nil
		}
		ok, merr := path.Match(pattern, path.Base(key))
		if merr != nil {
			return fmt.Errorf("bad pattern %q: %w", pattern, merr)
		}
		if ok {
			byDir[path.Dir(key)].Files = append(byDir[path.Dir(key)].Files, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ListFiles: %w", err)
	}

	listings := make([]DirListing, 0, len(order))
	for _, dir := range order {
		sort.Strings(byDir[dir].Files)
		listings = append(listings, *byDir[dir])
	}
	return listings, nil
}
