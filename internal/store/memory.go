package store

import (
	"context"
	"encoding/gob"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Memory is a store that keeps blobs in memory. When Path is set the entries
// are loaded from it on creation and written back on Close.
type Memory struct {
	Path string

	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemory creates a new in-memory store. An empty path disables persistence.
func NewMemory(path string) (*Memory, error) {
	m := &Memory{
		Path:  path,
		blobs: make(map[string][]byte),
	}
	if path == "" {
		return m, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, errors.Wrapf(err, "failed to open memory store %s", path)
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(&m.blobs); err != nil {
		return nil, errors.Wrapf(err, "failed to decode memory store %s", path)
	}
	return m, nil
}

// Get returns the blob for the given key.
// It returns ErrNotFound if the key does not exist.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return blob, nil
}

// Put sets the value for the given key.
// It overwrites any previous value for that key.
func (m *Memory) Put(_ context.Context, key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = blob
	return nil
}

// Delete removes the given key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

// List returns the stored keys in sorted order.
func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.blobs))
	for key := range m.blobs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear removes every entry.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.blobs)
	return nil
}

// Close writes the entries to Path when persistence is enabled.
func (m *Memory) Close() error {
	if m.Path == "" {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(m.Path), 0o750); err != nil {
		return errors.Wrap(err, "failed to create memory store directory")
	}
	f, err := os.Create(m.Path)
	if err != nil {
		return errors.Wrapf(err, "failed to create memory store %s", m.Path)
	}
	defer f.Close()
	return errors.Wrap(gob.NewEncoder(f).Encode(m.blobs), "failed to encode memory store")
}
