package token

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const usedKeyPrefix = "approval_token_used:"

// RedisGuard stores spent token ids until they would have expired anyway.
type RedisGuard struct {
	client *redis.Client
}

func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

func (g *RedisGuard) Use(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if id == "" {
		return true, nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	ok, err := g.client.SetNX(ctx, usedKeyPrefix+id, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("token.RedisGuard.Use: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	err := g.client.Del(ctx, usedKeyPrefix+id).Err()
	if err != nil {
		return fmt.Errorf("token.RedisGuard.Release: %w", err)
	}
	return nil
}
