package cachestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

const redisCachePrefix = "kyupikon/cache/"

// Redis-backed cache with a small in-process TinyLFU in front. Only a handful of keys (the
// bot's own recent-post timeline) are ever cached, so the local tier stays tiny.
type RedisCacheStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

var _ CacheStore = (*RedisCacheStore)(nil)

func NewRedisCacheStore(redisURL string, ttl time.Duration) (*RedisCacheStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return &RedisCacheStore{
		cache: cache.New(&cache.Options{
			Redis:      rdb,
			LocalCache: cache.NewTinyLFU(64, ttl),
		}),
		ttl: ttl,
	}, nil
}

func (s *RedisCacheStore) Get(ctx context.Context, name, key string) (string, bool, error) {
	var val string
	err := s.cache.Get(ctx, redisCachePrefix+name+"/"+key, &val)
	switch {
	case errors.Is(err, cache.ErrCacheMiss):
		return "", false, nil
	case err != nil:
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, name, key string, val string) error {
	return s.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisCachePrefix + name + "/" + key,
		Value: val,
		TTL:   s.ttl,
	})
}

func (s *RedisCacheStore) Purge(ctx context.Context, name, key string) error {
	if err := s.cache.Delete(ctx, redisCachePrefix+name+"/"+key); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		return err
	}
	return nil
}
