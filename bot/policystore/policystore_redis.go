package policystore

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

var redisPolicyPrefix string = "policy/"

// Stores each user record as a redis hash, keyed "policy/<user>".
type RedisPolicyStore struct {
	Client *redis.Client
}

func NewRedisPolicyStore(redisURL string) (*RedisPolicyStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	rps := RedisPolicyStore{
		Client: rdb,
	}
	return &rps, nil
}

func (s *RedisPolicyStore) Get(ctx context.Context, user string, field Field) (int64, bool, error) {
	v, err := s.Client.HGet(ctx, redisPolicyPrefix+user, string(field)).Int64()
	if err == redis.Nil {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (s *RedisPolicyStore) Set(ctx context.Context, user string, field Field, val int64) error {
	return s.Client.HSet(ctx, redisPolicyPrefix+user, string(field), val).Err()
}

func (s *RedisPolicyStore) Increment(ctx context.Context, user string, field Field, delta int64) (int64, error) {
	return s.Client.HIncrBy(ctx, redisPolicyPrefix+user, string(field), delta).Result()
}

func (s *RedisPolicyStore) ResetField(ctx context.Context, field Field) (int, error) {
	n := 0
	iter := s.Client.Scan(ctx, 0, redisPolicyPrefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if !strings.HasPrefix(key, redisPolicyPrefix) {
			continue
		}
		removed, err := s.Client.HDel(ctx, key, string(field)).Result()
		if err != nil {
			return n, err
		}
		if removed > 0 {
			n++
		}
	}
	return n, iter.Err()
}
