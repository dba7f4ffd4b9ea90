package gallery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Cache key prefixes, one namespace per entity type.
const (
	detailsKeyPrefix = "photo_details:"
	sizesKeyPrefix   = "photo_sizes:"
	friendKeyPrefix  = "friend_latest_photo:"
)

// negativeSentinel records "confirmed absent", distinct from a plain miss
// which only means "not yet checked".
var negativeSentinel = []byte(`{"error":"No photo found"}`)

// ErrCacheUnavailable wraps redis failures on the read path. A request that
// needs the cache and cannot reach it has no local recovery.
var ErrCacheUnavailable = errors.New("cache store unavailable")

// DetailsKey is the cache key for a photo's metadata.
func DetailsKey(photoID string) string { return detailsKeyPrefix + photoID }

// SizesKey is the cache key for a photo's size listing.
func SizesKey(photoID string) string { return sizesKeyPrefix + photoID }

// FriendKey is the cache key for a contact's most recent photo.
func FriendKey(nsid string) string { return friendKeyPrefix + nsid }

// Entry is one cache lookup result. Found distinguishes a miss from a hit;
// Negative marks a hit on the confirmed-absent sentinel.
type Entry struct {
	Found    bool
	Negative bool
	Raw      []byte
}

// Cache is a thin typed layer over redis for response fragments. Every write
// is a single-key SET with expiration; there are no multi-key transactions.
type Cache struct {
	client goredis.UniversalClient
}

// NewCache creates a cache backed by redis.
func NewCache(client goredis.UniversalClient) *Cache {
	return &Cache{client: client}
}

func entryFromRaw(raw []byte) Entry {
	return Entry{
		Found:    true,
		Negative: bytes.Equal(raw, negativeSentinel),
		Raw:      raw,
	}
}

// Get reads one key. A miss returns a zero Entry, not an error.
func (c *Cache) Get(ctx context.Context, key string) (Entry, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return Entry{}, nil
	}
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return entryFromRaw(raw), nil
}

// GetMany reads several keys in one round trip. The returned slice is
// positionally aligned with keys.
func (c *Cache) GetMany(ctx context.Context, keys []string) ([]Entry, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	entries := make([]Entry, len(keys))
	for i, v := range vals {
		switch raw := v.(type) {
		case string:
			entries[i] = entryFromRaw([]byte(raw))
		case []byte:
			entries[i] = entryFromRaw(raw)
		}
	}
	return entries, nil
}

// Set marshals v and writes it under key with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// SetNegative writes the confirmed-absent sentinel under key. The TTL is
// short: long enough to stop repeated hammering, short enough to retry soon.
func (c *Cache) SetNegative(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, negativeSentinel, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}
