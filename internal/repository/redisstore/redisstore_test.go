package redisstore

import (
	"context"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cryptoprojectsfun/advisorhub/internal/logger"
	"github.com/Cryptoprojectsfun/advisorhub/internal/models"
	"github.com/Cryptoprojectsfun/advisorhub/internal/repository"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, "test"), mr
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	rs, mr := newTestStore(t)
	defer rs.Close()

	require.NoError(t, rs.Ping(ctx))

	_, err := rs.Load(ctx, "clients")
	assert.ErrorIs(t, err, repository.ErrKeyNotFound)

	require.NoError(t, rs.Save(ctx, "clients", []byte(`[]`)))
	require.NoError(t, rs.Save(ctx, "users", []byte(`[]`)))

	raw, err := mr.Get("test:collection:clients")
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
	assert.Equal(t, 0.0, mr.TTL("test:collection:clients").Seconds())

	keys, err := rs.Keys(ctx)
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"clients", "users"}, keys)
}

func TestStoreBacksCollections(t *testing.T) {
	ctx := context.Background()
	rs, _ := newTestStore(t)
	store := repository.NewStore(rs, logger.NewNop())

	require.NoError(t, store.Recommendations.Put(ctx, models.Recommendation{
		ID:              "rec-1",
		Title:           "Buy",
		SubscriptionIDs: []string{"default"},
	}))

	recs, err := store.Recommendations.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Buy", recs[0].Title)
}

func TestStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	rs, mr := newTestStore(t)
	mr.Close()

	assert.Error(t, rs.Ping(ctx))
	_, err := rs.Load(ctx, "users")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrKeyNotFound)
}
