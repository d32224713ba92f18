package queuestore

import (
	"context"

	"github.com/redis/go-redis/v9"
)

var redisQueuePrefix string = "queue/"

// Each queue is a redis list; push appends on the right, pop takes from the left.
type RedisQueueStore struct {
	Client *redis.Client
}

func NewRedisQueueStore(redisURL string) (*RedisQueueStore, error) {
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
	return &RedisQueueStore{Client: rdb}, nil
}

func (s *RedisQueueStore) Push(ctx context.Context, name string, vals ...string) error {
	if len(vals) == 0 {
		return nil
	}
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	return s.Client.RPush(ctx, redisQueuePrefix+name, args...).Err()
}

func (s *RedisQueueStore) Pop(ctx context.Context, name string) (string, bool, error) {
	v, err := s.Client.LPop(ctx, redisQueuePrefix+name).Result()
	if err == redis.Nil {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisQueueStore) Len(ctx context.Context, name string) (int, error) {
	n, err := s.Client.LLen(ctx, redisQueuePrefix+name).Result()
	return int(n), err
}

func (s *RedisQueueStore) Clear(ctx context.Context, name string) error {
	return s.Client.Del(ctx, redisQueuePrefix+name).Err()
}

func (s *RedisQueueStore) List(ctx context.Context, name string) ([]string, error) {
	return s.Client.LRange(ctx, redisQueuePrefix+name, 0, -1).Result()
}
