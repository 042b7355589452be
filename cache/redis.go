package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// tagPrefix namespaces the per-tag key sets in Redis.
const tagPrefix = "lattice:tag:"

// Redis is a Cache backed by a Redis server. Tags are kept as sets of the
// keys they cover.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis cache. Entries and tag sets expire after ttl;
// ttl <= 0 defaults to one hour.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Redis{client: client, ttl: ttl}
}

// Do implements Cache.
func (r *Redis) Do(ctx context.Context, key string, tags []string, fill Fill) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		return val, true, nil
	}
	if err != redis.Nil {
		return nil, false, err
	}

	data, err := fill(ctx)
	if err != nil {
		return nil, false, err
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, data, r.ttl)
	for _, tag := range tags {
		pipe.SAdd(ctx, tagPrefix+tag, key)
		pipe.Expire(ctx, tagPrefix+tag, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, false, err
	}
	return data, false, nil
}

// Invalidate implements Cache.
func (r *Redis) Invalidate(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		keys, err := r.client.SMembers(ctx, tagPrefix+tag).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if err := r.client.Del(ctx, tagPrefix+tag).Err(); err != nil {
			return err
		}
	}
	return nil
}
