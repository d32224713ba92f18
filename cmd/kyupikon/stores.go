package main

import (
	"fmt"
	"time"

	"github.com/bluesky-social/kyupikon/bot/cachestore"
	"github.com/bluesky-social/kyupikon/bot/policystore"
	"github.com/bluesky-social/kyupikon/bot/queuestore"
	"github.com/bluesky-social/kyupikon/bot/setstore"
	"github.com/bluesky-social/kyupikon/util/cliutil"

	"gorm.io/plugin/opentelemetry/tracing"
)

// Persistent bot state, all from the same backend.
type Stores struct {
	Policies policystore.PolicyStore
	Sets     setstore.SetStore
	Queues   queuestore.QueueStore
	Cache    cachestore.CacheStore
}

type StoreConfig struct {
	RedisURL       string
	DatabaseURL    string
	MaxConnections int
	// trace SQL queries with OpenTelemetry
	DBTracing bool
}

// Opens redis-backed stores when RedisURL is set, otherwise gorm-backed stores on the
// database at DatabaseURL (with an in-process cache).
func OpenStores(config StoreConfig) (*Stores, error) {
	if redisURL := config.RedisURL; redisURL != "" {
		policies, err := policystore.NewRedisPolicyStore(redisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis policystore: %v", err)
		}
		sets, err := setstore.NewRedisSetStore(redisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis setstore: %v", err)
		}
		queues, err := queuestore.NewRedisQueueStore(redisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis queuestore: %v", err)
		}
		cache, err := cachestore.NewRedisCacheStore(redisURL, 30*time.Minute)
		if err != nil {
			return nil, fmt.Errorf("initializing redis cachestore: %v", err)
		}
		return &Stores{Policies: policies, Sets: sets, Queues: queues, Cache: cache}, nil
	}

	db, err := cliutil.SetupDatabase(config.DatabaseURL, config.MaxConnections)
	if err != nil {
		return nil, err
	}
	if config.DBTracing {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, err
		}
	}
	policies, err := policystore.NewGormPolicyStore(db)
	if err != nil {
		return nil, fmt.Errorf("initializing policystore: %v", err)
	}
	sets, err := setstore.NewGormSetStore(db)
	if err != nil {
		return nil, fmt.Errorf("initializing setstore: %v", err)
	}
	queues, err := queuestore.NewGormQueueStore(db)
	if err != nil {
		return nil, fmt.Errorf("initializing queuestore: %v", err)
	}
	return &Stores{
		Policies: policies,
		Sets:     sets,
		Queues:   queues,
		Cache:    cachestore.NewMemCacheStore(1_000, 30*time.Minute),
	}, nil
}
