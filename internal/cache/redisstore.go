package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "netgate:cache:"

// RedisStore is a Redis-backed Store for multi-instance deployments. Expiry
// is delegated to Redis TTLs; size bounding is left to the server's own
// maxmemory policy, so Set never reports evictions.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore builds a store on top of an existing Redis client.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(k Key) string {
	return redisKeyPrefix + k.String()
}

func (s *RedisStore) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return raw, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key Key, value []byte, ttl time.Duration) (int, error) {
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return 0, fmt.Errorf("redis set %q: %w", key, err)
	}
	return 0, nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...Key) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = s.key(k)
	}
	removed, err := s.client.Del(ctx, names...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del: %w", err)
	}
	return int(removed), nil
}

func (s *RedisStore) DeleteKind(ctx context.Context, kind KeyKind) (int, error) {
	names, err := s.scanKeys(ctx, redisKeyPrefix+kind.String()+":*")
	if err != nil {
		return 0, err
	}
	if len(names) == 0 {
		return 0, nil
	}
	removed, err := s.client.Del(ctx, names...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del kind %s: %w", kind, err)
	}
	return int(removed), nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	names, err := s.scanKeys(ctx, redisKeyPrefix+"*")
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	names, err := s.scanKeys(ctx, redisKeyPrefix+"*")
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, names...).Err(); err != nil {
		return fmt.Errorf("redis clear: %w", err)
	}
	return nil
}

func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (s *RedisStore) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var names []string
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		names = append(names, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %q: %w", pattern, err)
	}
	return names, nil
}
