package db

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"procurement/internal/config"
	"procurement/internal/logging"
)

func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("db.NewRedisClient: %w", err)
	}

	logging.GetLogger().Infof("Connected to redis at %s", cfg.Addr)
	return client, nil
}
