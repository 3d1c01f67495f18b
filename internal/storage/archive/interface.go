package archive

import "context"

// Storage defines the interface for cold/archive storage backends.
// Paths are slash-separated and relative to the backend root.
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths under the prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}
