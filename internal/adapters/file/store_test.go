package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/vine/internal/adapters/file"
	"github.com/aretw0/vine/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	store := file.New(t.TempDir())
	ports.RunStorageContract(t, store)
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	require.NoError(t, store.SetItem(ctx, "counter", `{"__store__":true}`))

	data, err := os.ReadFile(filepath.Join(dir, "counter.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"__store__":true}`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestFileStore_InvalidKeys(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"", "../escape", `a\b`, ".."} {
		assert.ErrorIs(t, store.SetItem(ctx, key, "x"), file.ErrInvalidKey, key)
		_, err := store.GetItem(ctx, key)
		assert.ErrorIs(t, err, file.ErrInvalidKey, key)
	}
}

func TestFileStore_KeysOnMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "missing"))
	keys, err := store.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}
