// Package storage provides the flat key/blob stores backing the run cache.
package storage

import (
	"context"
	"errors"
)

// Store persists opaque blobs under string keys.
//
// Keys are fingerprints (hex digests); implementations may rely on keys being
// safe to use as file names.
type Store interface {
	// Get returns the blob stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores data under key, replacing any previous blob.
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes key. Returns ErrNotFound if key doesn't exist.
	Delete(ctx context.Context, key string) error

	// List returns every stored key in ascending order.
	List(ctx context.Context) ([]string, error)

	// Clear removes every stored key.
	Clear(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// ErrNotFound is returned when a key doesn't exist.
type ErrNotFound struct {
	Key string
}

func (e ErrNotFound) Error() string {
	return "key not found: " + e.Key
}

// IsNotFound returns true if err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// Backend names a Store implementation.
type Backend string

const (
	BackendFS     Backend = "fs"
	BackendSQLite Backend = "sqlite"
)

// Open creates the store selected by backend rooted at dir.
func Open(backend Backend, dir string) (Store, error) {
	switch backend {
	case "", BackendFS:
		return NewFSStore(dir)
	case BackendSQLite:
		return NewSQLiteStore(dir)
	default:
		return nil, ErrUnknownBackend{Backend: string(backend)}
	}
}

// ErrUnknownBackend is returned by Open for unsupported backends.
type ErrUnknownBackend struct {
	Backend string
}

func (e ErrUnknownBackend) Error() string {
	return "unknown cache backend: " + e.Backend
}
