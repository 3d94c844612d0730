package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"posledger/backend/internal/domain"
)

const ladderKey = "posledger:reward-tiers:ladder"

type RedisTierCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTierCache(addr string, password string, db int, ttl time.Duration) *RedisTierCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisTierCacheWithClient(client, ttl)
}

func NewRedisTierCacheWithClient(client *redis.Client, ttl time.Duration) *RedisTierCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisTierCache{client: client, ttl: ttl}
}

func (c *RedisTierCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisTierCache) Close() error {
	return c.client.Close()
}

func (c *RedisTierCache) GetLadder(ctx context.Context) ([]domain.RewardTier, bool, error) {
	val, err := c.client.Get(ctx, ladderKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var ladder []domain.RewardTier
	if err := json.Unmarshal([]byte(val), &ladder); err != nil {
		return nil, false, err
	}
	return ladder, true, nil
}

func (c *RedisTierCache) SetLadder(ctx context.Context, ladder []domain.RewardTier) error {
	payload, err := json.Marshal(ladder)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, ladderKey, payload, c.ttl).Err()
}

func (c *RedisTierCache) InvalidateLadder(ctx context.Context) error {
	return c.client.Del(ctx, ladderKey).Err()
}
