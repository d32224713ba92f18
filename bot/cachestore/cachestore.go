// Package cachestore caches short-lived string values (typically JSON) under a namespace and
// key, with a fixed TTL.
//
// The bot uses it to avoid refetching its own recent-post timeline on every rotation.
package cachestore

import (
	"context"
	"encoding/json"
)

type CacheStore interface {
	// The bool is false on a miss.
	Get(ctx context.Context, name, key string) (string, bool, error)
	Set(ctx context.Context, name, key string, val string) error
	Purge(ctx context.Context, name, key string) error
}

// Fetches and JSON-decodes a cached value. Undecodable values are treated as a miss.
func GetJSON[T any](ctx context.Context, c CacheStore, name, key string) (*T, error) {
	raw, ok, err := c.Get(ctx, name, key)
	if err != nil || !ok {
		return nil, err
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, nil
	}
	return &out, nil
}

func SetJSON(ctx context.Context, c CacheStore, name, key string, val any) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return c.Set(ctx, name, key, string(b))
}
