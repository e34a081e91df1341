package infra

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"fiscalgate/internal/fiscal"
)

// RedisTokenStore persists gateway access tokens in Redis so that all
// processes share one token per cash-register group. Tokens carry no local
// expiry — the gateway invalidates them, detected via 401.
type RedisTokenStore struct {
	rdb *redis.Client
}

func NewRedisTokenStore(rdb *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{rdb: rdb}
}

func (s *RedisTokenStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (s *RedisTokenStore) Set(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, key, value, 0).Err()
}

// compile-time interface check
var _ fiscal.TokenStore = (*RedisTokenStore)(nil)
