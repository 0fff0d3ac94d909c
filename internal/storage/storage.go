// Package storage provides artifact storage for derived media. It defines
// the Store interface (port) for hexagonal architecture and implementations
// for local disk and S3-backed publication.
package storage

import "context"

// Store defines the interface for staging and publishing derived artifacts.
// Pipelines write artifacts under the store root; Publish makes a finished
// artifact available to consumers and returns its URL.
type Store interface {
	// ArtifactPath returns the absolute path under the store root for
	// the given path elements. It does not create anything.
	ArtifactPath(elem ...string) string

	// EnsureDir creates the directory (and parents) if it does not exist.
	EnsureDir(path string) error

	// Publish makes the artifact at path available under the given key
	// and returns its URL. Local stores return a file:// URL; S3 stores
	// upload the file and return its object URL.
	Publish(ctx context.Context, key, path string) (url string, err error)

	// Remove deletes an artifact file or directory tree. Missing paths
	// are not an error.
	Remove(path string) error
}
