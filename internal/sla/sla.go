package sla

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const dueKey = "approval_sla_due"

// RedisQueue keeps approval step deadlines in a sorted set scored by unix time.
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client, key: dueKey}
}

func (q *RedisQueue) Schedule(ctx context.Context, stepId string, deadline time.Time) error {
	err := q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(deadline.Unix()),
		Member: stepId,
	}).Err()
	if err != nil {
		return fmt.Errorf("sla.RedisQueue.Schedule: %w", err)
	}
	return nil
}

// Due returns the steps whose deadline is at or before now.
func (q *RedisQueue) Due(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("sla.RedisQueue.Due: %w", err)
	}
	return ids, nil
}

func (q *RedisQueue) Remove(ctx context.Context, stepIds ...string) error {
	if len(stepIds) == 0 {
		return nil
	}

	members := make([]interface{}, len(stepIds))
	for i, id := range stepIds {
		members[i] = id
	}

	err := q.client.ZRem(ctx, q.key, members...).Err()
	if err != nil {
		return fmt.Errorf("sla.RedisQueue.Remove: %w", err)
	}
	return nil
}
