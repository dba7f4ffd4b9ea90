package gallery

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client), mr
}

func TestGetMissReturnsZeroEntry(t *testing.T) {
	cache, _ := newCache(t)

	entry, err := cache.Get(context.Background(), DetailsKey("123"))
	require.NoError(t, err)
	assert.False(t, entry.Found)
	assert.False(t, entry.Negative)
}

func TestSetThenGetReturnsExactBytes(t *testing.T) {
	cache, _ := newCache(t)
	ctx := context.Background()

	payload := map[string]string{"title": "Sunset"}
	require.NoError(t, cache.Set(ctx, DetailsKey("123"), payload, time.Hour))

	entry, err := cache.Get(ctx, DetailsKey("123"))
	require.NoError(t, err)
	assert.True(t, entry.Found)
	assert.False(t, entry.Negative)
	assert.JSONEq(t, `{"title":"Sunset"}`, string(entry.Raw))
}

func TestExpiredEntryBehavesAsMiss(t *testing.T) {
	cache, mr := newCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, SizesKey("123"), []string{"a"}, time.Minute))
	mr.FastForward(2 * time.Minute)

	entry, err := cache.Get(ctx, SizesKey("123"))
	require.NoError(t, err)
	assert.False(t, entry.Found)
}

func TestNegativeEntryIsDistinguishedFromMiss(t *testing.T) {
	cache, _ := newCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetNegative(ctx, FriendKey("11111111@N00"), 2*time.Minute))

	entry, err := cache.Get(ctx, FriendKey("11111111@N00"))
	require.NoError(t, err)
	assert.True(t, entry.Found)
	assert.True(t, entry.Negative)
}

func TestGetManyAlignsWithKeys(t *testing.T) {
	cache, _ := newCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, FriendKey("a"), "photo-a", time.Hour))
	require.NoError(t, cache.SetNegative(ctx, FriendKey("c"), time.Minute))

	entries, err := cache.GetMany(ctx, []string{FriendKey("a"), FriendKey("b"), FriendKey("c")})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.True(t, entries[0].Found)
	assert.False(t, entries[0].Negative)
	assert.False(t, entries[1].Found)
	assert.True(t, entries[2].Found)
	assert.True(t, entries[2].Negative)
}

func TestCacheUnavailableSurfaces(t *testing.T) {
	cache, mr := newCache(t)
	mr.Close()

	_, err := cache.Get(context.Background(), DetailsKey("123"))
	require.ErrorIs(t, err, ErrCacheUnavailable)

	_, err = cache.GetMany(context.Background(), []string{FriendKey("a")})
	require.ErrorIs(t, err, ErrCacheUnavailable)
}

func TestKeyNamespaces(t *testing.T) {
	assert.Equal(t, "photo_details:123", DetailsKey("123"))
	assert.Equal(t, "photo_sizes:123", SizesKey("123"))
	assert.Equal(t, "friend_latest_photo:11111111@N00", FriendKey("11111111@N00"))
}
