package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cryptoprojectsfun/advisorhub/internal/logger"
	"github.com/Cryptoprojectsfun/advisorhub/internal/models"
	"github.com/Cryptoprojectsfun/advisorhub/internal/repository"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")

	fs, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, fs.Ping(ctx))

	t.Run("missing key", func(t *testing.T) {
		_, err := fs.Load(ctx, "users")
		assert.ErrorIs(t, err, repository.ErrKeyNotFound)
	})

	t.Run("save then load", func(t *testing.T) {
		require.NoError(t, fs.Save(ctx, "users", []byte(`[]`)))
		data, err := fs.Load(ctx, "users")
		require.NoError(t, err)
		assert.Equal(t, "[]", string(data))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1, "temp files must not be left behind")
		assert.Equal(t, "users.json", entries[0].Name())
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.Error(t, fs.Save(cctx, "users", []byte(`[]`)))
	})
}

func TestStoreBacksCollections(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	fs, err := New(dir)
	require.NoError(t, err)
	store := repository.NewStore(fs, logger.NewNop())
	require.NoError(t, store.Seed(ctx, time.Now()))

	for _, key := range []string{"users", "clients", "recommendations", "subscriptions", "accessRequests"} {
		_, err := os.Stat(filepath.Join(dir, key+".json"))
		assert.NoError(t, err, key)
	}

	require.NoError(t, store.Clients.Put(ctx, models.Client{ID: "client-1", Name: "Ann", OwnerID: "1"}))

	reopened, err := New(dir)
	require.NoError(t, err)
	clients, err := repository.NewStore(reopened, logger.NewNop()).Clients.List(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "Ann", clients[0].Name)
}
