package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const localExt = ".symcache"

// Local is a store that keeps one file per key under Folder.
type Local struct {
	Folder string
}

// NewLocal creates the folder if needed and returns a store rooted at it.
func NewLocal(folder string) (*Local, error) {
	if folder == "" {
		return nil, fmt.Errorf("'folder' is required")
	}
	if err := os.MkdirAll(folder, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create local store folder: %w", err)
	}
	return &Local{Folder: folder}, nil
}

// keys contain slashes, so file names use their base64url form
func (l *Local) path(key string) string {
	return filepath.Join(l.Folder, base64.RawURLEncoding.EncodeToString([]byte(key))+localExt)
}

// Get returns the blob for the given key.
// It returns ErrNotFound if the key does not exist.
func (l *Local) Get(_ context.Context, key string) ([]byte, error) {
	blob, err := os.ReadFile(l.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read symbol cache %s: %w", key, err)
	}
	return blob, nil
}

// Put writes the blob to a temporary file and renames it into place so
// readers never observe a partial entry.
func (l *Local) Put(_ context.Context, key string, blob []byte) error {
	tmp, err := os.CreateTemp(l.Folder, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write symbol cache %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write symbol cache %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), l.path(key)); err != nil {
		return fmt.Errorf("failed to store symbol cache %s: %w", key, err)
	}
	return nil
}

// Delete removes the given key.
func (l *Local) Delete(_ context.Context, key string) error {
	if err := os.Remove(l.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete symbol cache %s: %w", key, err)
	}
	return nil
}

// List returns the stored keys in sorted order.
func (l *Local) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.Folder)
	if err != nil {
		return nil, fmt.Errorf("failed to read local store folder: %w", err)
	}
	var keys []string
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), localExt)
		if e.IsDir() || !ok {
			continue
		}
		key, err := base64.RawURLEncoding.DecodeString(name)
		if err != nil {
			continue
		}
		keys = append(keys, string(key))
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear removes every entry.
func (l *Local) Clear(ctx context.Context) error {
	keys, err := l.List(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := l.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op.
func (l *Local) Close() error { return nil }
