package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FSStore keeps one file per key directly under its base directory:
//
//	.cachedir/
//	  3f9a...   (outcome entry, JSON)
//	  b07c...   (sentinel comparison value, raw string)
//
// Keys must be lowercase hex digests. Files with any other name belong to
// someone else and are never listed or removed.
type FSStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFSStore creates the base directory if needed and returns a store over it.
func NewFSStore(basePath string) (*FSStore, error) {
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", basePath, err)
	}
	return &FSStore{basePath: basePath}, nil
}

// Path returns the base directory.
func (fs *FSStore) Path() string { return fs.basePath }

// Get returns the blob stored under key.
func (fs *FSStore) Get(_ context.Context, key string) ([]byte, error) {
	if !isKey(key) {
		return nil, ErrNotFound{Key: key}
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	// #nosec G304 - keys are hex fingerprints produced internally
	data, err := os.ReadFile(fs.keyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound{Key: key}
		}
		return nil, fmt.Errorf("read entry: %w", err)
	}
	return data, nil
}

// Put writes data under key through a temp file and rename, so readers never
// observe a half-written entry.
func (fs *FSStore) Put(_ context.Context, key string, data []byte) error {
	if !isKey(key) {
		return fmt.Errorf("invalid entry key %q: want a hex digest", key)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	tmp, err := os.CreateTemp(fs.basePath, tmpPrefix+key+"-*")
	if err != nil {
		return fmt.Errorf("create temp entry: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close entry: %w", err)
	}
	if err := os.Rename(tmpName, fs.keyPath(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("commit entry: %w", err)
	}
	return nil
}

// Delete removes key.
func (fs *FSStore) Delete(_ context.Context, key string) error {
	if !isKey(key) {
		return ErrNotFound{Key: key}
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.keyPath(key)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound{Key: key}
		}
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// List returns every key in ascending order.
func (fs *FSStore) List(_ context.Context) ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	keys, _, err := fs.scan()
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Clear removes every entry and any temp file left by an interrupted Put.
// The directory itself and unrelated files in it stay.
func (fs *FSStore) Clear(_ context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	keys, temps, err := fs.scan()
	if err != nil {
		return err
	}
	for _, name := range append(keys, temps...) {
		if err := os.Remove(filepath.Join(fs.basePath, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove entry %s: %w", name, err)
		}
	}
	return nil
}

// scan splits the regular files of the base directory into entry keys and
// leftover temp files. Keys come back sorted.
func (fs *FSStore) scan() (keys, temps []string, err error) {
	entries, err := os.ReadDir(fs.basePath)
	if err != nil {
		return nil, nil, fmt.Errorf("read cache directory: %w", err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasPrefix(name, tmpPrefix) && isKey(tmpKey(name)):
			temps = append(temps, name)
		case isKey(name):
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	return keys, temps, nil
}

// Close releases resources.
func (fs *FSStore) Close() error {
	return nil
}

func (fs *FSStore) keyPath(key string) string {
	return filepath.Join(fs.basePath, key)
}

const tmpPrefix = ".tmp-"

// tmpKey extracts the key from a temp file name of the form .tmp-<key>-<random>.
func tmpKey(name string) string {
	rest := strings.TrimPrefix(name, tmpPrefix)
	if i := strings.LastIndexByte(rest, '-'); i >= 0 {
		return rest[:i]
	}
	return ""
}

func isKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
