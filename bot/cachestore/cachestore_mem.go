package cachestore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memKey struct {
	name string
	key  string
}

// In-process cache, used when no redis is configured. Entries are lost on restart, which only
// costs one extra timeline fetch.
type MemCacheStore struct {
	lru *expirable.LRU[memKey, string]
}

var _ CacheStore = (*MemCacheStore)(nil)

func NewMemCacheStore(capacity int, ttl time.Duration) *MemCacheStore {
	return &MemCacheStore{
		lru: expirable.NewLRU[memKey, string](capacity, nil, ttl),
	}
}

func (s *MemCacheStore) Get(ctx context.Context, name, key string) (string, bool, error) {
	v, ok := s.lru.Get(memKey{name, key})
	return v, ok, nil
}

func (s *MemCacheStore) Set(ctx context.Context, name, key string, val string) error {
	s.lru.Add(memKey{name, key}, val)
	return nil
}

func (s *MemCacheStore) Purge(ctx context.Context, name, key string) error {
	s.lru.Remove(memKey{name, key})
	return nil
}

// Number of live entries.
func (s *MemCacheStore) Len() int {
	return s.lru.Len()
}
