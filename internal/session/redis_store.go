package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the identifier under a fixed key so it survives process
// restarts and is shared across instances.
type RedisStore struct {
	redis *redis.Client
	key   string
	ttl   time.Duration
}

// NewRedisStore creates a store persisting under key with the given TTL.
// A ttl of zero means no expiry.
func NewRedisStore(client *redis.Client, key string, ttl time.Duration) *RedisStore {
	return &RedisStore{redis: client, key: key, ttl: ttl}
}

func (s *RedisStore) Read(ctx context.Context) (string, error) {
	if s == nil || s.redis == nil {
		return "", errors.New("session: redis client not configured")
	}
	id, err := s.redis.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("session: read %s: %w", s.key, err)
	}
	return id, nil
}

func (s *RedisStore) Write(ctx context.Context, id string) error {
	if s == nil || s.redis == nil {
		return errors.New("session: redis client not configured")
	}
	if err := s.redis.Set(ctx, s.key, id, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: write %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if s == nil || s.redis == nil {
		return errors.New("session: redis client not configured")
	}
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("session: clear %s: %w", s.key, err)
	}
	return nil
}
