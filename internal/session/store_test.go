package session

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suze-ad/finetech/pkg/logging"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, store.Write(ctx, "abc"))
	id, err = store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	require.NoError(t, store.Clear(ctx))
	id, err = store.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	client := newTestRedis(t)
	store := NewRedisStore(client, "chat_session:visitor-1", time.Hour)
	ctx := context.Background()

	id, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, id, "missing key reads as absent")

	require.NoError(t, store.Write(ctx, "abc"))
	id, err = store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	require.NoError(t, store.Clear(ctx))
	id, err = store.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestRedisStoreIsolatedByKey(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	a := NewRedisStore(client, "chat_session:a", 0)
	b := NewRedisStore(client, "chat_session:b", 0)

	require.NoError(t, a.Write(ctx, "id-a"))

	id, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestRedisStoreSurfacesErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, "chat_session:x", 0)
	mr.Close()

	_, err := store.Read(context.Background())
	assert.Error(t, err)
	assert.Error(t, store.Write(context.Background(), "abc"))
	assert.Error(t, store.Clear(context.Background()))
}

func TestFailSoftSwallowsErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter("warn", &buf)
	store := NewFailSoft(&failingStore{}, logger)
	ctx := context.Background()

	id, err := store.Read(ctx)
	assert.NoError(t, err)
	assert.Empty(t, id)
	assert.NoError(t, store.Write(ctx, "abc"))
	assert.NoError(t, store.Clear(ctx))

	assert.Contains(t, buf.String(), "store read failed")
}
