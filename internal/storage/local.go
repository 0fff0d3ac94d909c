package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// Compile-time check that LocalStore implements Store.
var _ Store = (*LocalStore)(nil)

// LocalStore implements the Store interface using local disk.
// Derived artifacts live under a configurable root directory and Publish
// returns file:// URLs without copying anything.
type LocalStore struct {
	root string
}

// NewLocalStore creates a new LocalStore rooted at root.
// If root is empty, a directory under os.TempDir() is used.
// The root directory is created if it doesn't exist.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "media-converter")
	}

	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact root: %w", err)
	}

	return &LocalStore{root: abs}, nil
}

// Root returns the artifact root directory.
func (s *LocalStore) Root() string {
	return s.root
}

// ArtifactPath returns the absolute path under the store root for the
// given path elements.
func (s *LocalStore) ArtifactPath(elem ...string) string {
	return filepath.Join(append([]string{s.root}, elem...)...)
}

// EnsureDir creates the directory (and parents) if it does not exist.
func (s *LocalStore) EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0750); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return nil
}

// Publish returns a file:// URL for the artifact at path. The key is
// ignored for local publication; the artifact stays where the pipeline
// wrote it.
func (s *LocalStore) Publish(_ context.Context, _ string, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve artifact path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("stat artifact: %w", err)
	}
	return (&url.URL{Scheme: "file", Path: abs}).String(), nil
}

// Remove deletes an artifact file or directory tree. Missing paths are
// not an error.
func (s *LocalStore) Remove(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove artifact: %w", err)
	}
	return nil
}
