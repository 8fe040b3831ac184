package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/vine/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStorageContract runs a suite of tests to verify that a Storage implementation
// adheres to the defined interface contract.
func RunStorageContract(t *testing.T, storage Storage) {
	ctx := context.Background()
	key := "contract-test-" + time.Now().Format("20060102150405")

	t.Run("Set and Get", func(t *testing.T) {
		value := `{"__store__":true,"ver":1,"data":{"count":3}}`

		err := storage.SetItem(ctx, key, value)
		require.NoError(t, err, "SetItem should not return error")

		loaded, err := storage.GetItem(ctx, key)
		require.NoError(t, err, "GetItem should not return error")
		assert.Equal(t, value, loaded)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, storage.SetItem(ctx, key, "first"))
		require.NoError(t, storage.SetItem(ctx, key, "second"))

		loaded, err := storage.GetItem(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "second", loaded)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := storage.GetItem(ctx, "non-existent-"+key)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, storage.SetItem(ctx, key, "value"))

		err := storage.RemoveItem(ctx, key)
		require.NoError(t, err, "RemoveItem should not return error")

		_, err = storage.GetItem(ctx, key)
		assert.ErrorIs(t, err, domain.ErrNotFound, "GetItem after RemoveItem should return ErrNotFound")

		assert.NoError(t, storage.RemoveItem(ctx, key), "removing a missing key is not an error")
	})

	t.Run("Keys", func(t *testing.T) {
		k1 := key + "-1"
		k2 := key + "-2"
		require.NoError(t, storage.SetItem(ctx, k1, "a"))
		require.NoError(t, storage.SetItem(ctx, k2, "b"))

		defer func() {
			_ = storage.RemoveItem(ctx, k1)
			_ = storage.RemoveItem(ctx, k2)
		}()

		keys, err := storage.Keys(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, k1)
		assert.Contains(t, keys, k2)
	})
}
