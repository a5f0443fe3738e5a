// Package storetest checks that a store.Store implementation honors the
// storage contract.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacksym/stacksym/internal/store"
)

// Run exercises s. The store must start empty.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		_, err := s.Get(ctx, "x86_64/linux/0.0.0")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("PutGet", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "x86_64/linux/1.0.0", []byte("first")))
		got, err := s.Get(ctx, "x86_64/linux/1.0.0")
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), got)
	})

	t.Run("LastWriteWins", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "x86_64/linux/1.0.0", []byte("second")))
		got, err := s.Get(ctx, "x86_64/linux/1.0.0")
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), got)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "aarch64/macos/2.0.0-abc", []byte{0, 1, 2}))
		keys, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"aarch64/macos/2.0.0-abc", "x86_64/linux/1.0.0"}, keys)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "aarch64/macos/2.0.0-abc"))
		_, err := s.Get(ctx, "aarch64/macos/2.0.0-abc")
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, s.Delete(ctx, "aarch64/macos/2.0.0-abc"), "deleting a missing key")
	})

	t.Run("Concurrent", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				key := fmt.Sprintf("x86_64/windows/%d.0.0", i)
				assert.NoError(t, s.Put(ctx, key, []byte(key)))
				got, err := s.Get(ctx, key)
				assert.NoError(t, err)
				assert.Equal(t, key, string(got))
			}()
		}
		wg.Wait()
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, s.Clear(ctx))
		keys, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)
	})
}
