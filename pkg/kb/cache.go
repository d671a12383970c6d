package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NameIndexCache persists name indexes between runs, keyed by KB version.
type NameIndexCache interface {
	Load(ctx context.Context, version string) (NameIndex, bool, error)
	Store(ctx context.Context, version string, idx NameIndex) error
}

// redisKV is the part of redis.Cmdable the cache uses.
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisNameCache stores name indexes as JSON values.
type RedisNameCache struct {
	client redisKV
	prefix string
	ttl    time.Duration
}

// NewRedisNameCache creates a cache. A zero ttl keeps entries forever.
func NewRedisNameCache(client redisKV, prefix string, ttl time.Duration) *RedisNameCache {
	if prefix == "" {
		prefix = "penf-ner"
	}
	return &RedisNameCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisNameCache) key(version string) string {
	return fmt.Sprintf("%s:names:%s", c.prefix, version)
}

// Load returns the cached index for version; ok is false on a miss.
func (c *RedisNameCache) Load(ctx context.Context, version string) (NameIndex, bool, error) {
	data, err := c.client.Get(ctx, c.key(version)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read name index: %w", err)
	}
	var idx NameIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, false, fmt.Errorf("failed to decode name index: %w", err)
	}
	return idx, true, nil
}

func (c *RedisNameCache) Store(ctx context.Context, version string, idx NameIndex) error {
	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("failed to encode name index: %w", err)
	}
	if err := c.client.Set(ctx, c.key(version), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write name index: %w", err)
	}
	return nil
}

// CachedNameIndex returns the cached index for version or builds it from
// entities and stores it. Cache failures fall back to building.
func CachedNameIndex(ctx context.Context, cache NameIndexCache, version string, entities []*Entity) (NameIndex, error) {
	if cache == nil || version == "" {
		return BuildNameIndex(entities), nil
	}
	idx, ok, err := cache.Load(ctx, version)
	if err != nil {
		return BuildNameIndex(entities), err
	}
	if ok {
		return idx, nil
	}
	idx = BuildNameIndex(entities)
	return idx, cache.Store(ctx, version, idx)
}
