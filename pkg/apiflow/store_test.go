package apiflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	values, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, values)

	require.NoError(t, store.Save(ctx, map[string]interface{}{"merchantId": "m-1"}))

	values, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "m-1", values["merchantId"])

	// Loaded maps are copies; mutating one never leaks back.
	values["merchantId"] = "tampered"

	values, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "m-1", values["merchantId"])

	require.NoError(t, store.Clear(ctx))

	values, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestFileStore(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "nested", "context.json")
		store := NewFileStore(path)

		// A file that has never been saved loads empty.
		values, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, values)

		require.NoError(t, store.Save(ctx, map[string]interface{}{
			"merchantId": "m-1",
			"pageSize":   float64(25),
		}))

		values, err = store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "m-1", values["merchantId"])
		assert.InDelta(t, 25, values["pageSize"], 0.001)
	})

	t.Run("clear removes the file", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "context.json")
		store := NewFileStore(path)

		require.NoError(t, store.Save(ctx, map[string]interface{}{"a": 1}))
		require.NoError(t, store.Clear(ctx))

		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))

		// Clearing an already missing file is not an error.
		require.NoError(t, store.Clear(ctx))
	})

	t.Run("corrupt file is an error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "context.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

		_, err := NewFileStore(path).Load(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse")
	})
}

func TestNewStoreFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("nil config defaults to memory", func(t *testing.T) {
		t.Parallel()

		store, err := NewStoreFromConfig(nil)
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, store)
	})

	t.Run("file store requires a path", func(t *testing.T) {
		t.Parallel()

		_, err := NewStoreFromConfig(&StoreConfig{Type: StoreTypeFile})
		require.ErrorIs(t, err, ErrFileConfigRequired)

		_, err = NewStoreFromConfig(&StoreConfig{Type: StoreTypeFile, File: &FileStoreConfig{}})
		require.ErrorIs(t, err, ErrFileConfigRequired)
	})

	t.Run("nats store requires configuration", func(t *testing.T) {
		t.Parallel()

		_, err := NewStoreFromConfig(&StoreConfig{Type: StoreTypeNATS})
		require.ErrorIs(t, err, ErrNATSConfigRequired)
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := NewStoreFromConfig(&StoreConfig{Type: StoreType("redis")})
		require.ErrorIs(t, err, ErrUnsupportedStoreType)
	})
}

func TestStoreBuilder(t *testing.T) {
	t.Parallel()

	t.Run("defaults to memory", func(t *testing.T) {
		t.Parallel()

		store, err := NewStoreBuilder().Build()
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, store)
	})

	t.Run("builds a file store", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "context.json")

		store, err := NewStoreBuilder().WithFile(path).Build()
		require.NoError(t, err)
		assert.IsType(t, &FileStore{}, store)
	})

	t.Run("with type alone still validates", func(t *testing.T) {
		t.Parallel()

		_, err := NewStoreBuilder().WithType(StoreTypeFile).Build()
		require.ErrorIs(t, err, ErrFileConfigRequired)
	})
}
