// Package store persists symbol cache blobs keyed by cache key.
//
// A key names a release, not the contents of the debug file a blob was built
// from. A stored blob is served until it is deleted.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no entry exists for a key.
var ErrNotFound = errors.New("symbol cache not found")

// Store is the interface that wraps the basic symbol cache storage operations.
// Implementations must be safe for concurrent use. Concurrent writers to the
// same key resolve as last write wins.
type Store interface {
	// Get returns the blob stored under key.
	// It returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores blob under key, overwriting any previous value.
	Put(ctx context.Context, key string, blob []byte) error

	// Delete removes the given key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns every stored key in sorted order.
	List(ctx context.Context) ([]string, error)

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Close releases the store.
	Close() error
}
