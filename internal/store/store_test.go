package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacksym/stacksym/internal/store"
	"github.com/stacksym/stacksym/internal/store/storetest"
)

func TestMemory(t *testing.T) {
	m, err := store.NewMemory("")
	require.NoError(t, err)
	storetest.Run(t, m)
	assert.NoError(t, m.Close())
}

func TestMemoryPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "symcache.gob")
	ctx := context.Background()

	m, err := store.NewMemory(path)
	require.NoError(t, err)
	require.NoError(t, m.Put(ctx, "x86_64/linux/1.0.0", []byte("blob")))
	require.NoError(t, m.Close())

	reopened, err := store.NewMemory(path)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "x86_64/linux/1.0.0")
	require.NoError(t, err)
	assert.Equal(t, []byte("blob"), got)
}

func TestLocal(t *testing.T) {
	l, err := store.NewLocal(filepath.Join(t.TempDir(), "symcache"))
	require.NoError(t, err)
	storetest.Run(t, l)
	assert.NoError(t, l.Close())
}

func TestLocalFileNames(t *testing.T) {
	dir := t.TempDir()
	l, err := store.NewLocal(dir)
	require.NoError(t, err)
	require.NoError(t, l.Put(context.Background(), "x86_64/linux/1.0.0", []byte("blob")))

	matches, err := filepath.Glob(filepath.Join(dir, "*.symcache"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "eDg2XzY0L2xpbnV4LzEuMC4w.symcache", filepath.Base(matches[0]))
}

func TestNewLocalRequiresFolder(t *testing.T) {
	_, err := store.NewLocal("")
	assert.Error(t, err)
}
