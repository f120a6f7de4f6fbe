package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/harjot96/POS/internal/domain"
)

// RedisDashboardCache keeps every cached variant of one shopkeeper in a
// single hash so a write can drop them all with one DEL.
type RedisDashboardCache struct {
	client *redis.Client
	prefix string
}

func NewRedisDashboardCache(addr string, password string, db int) *RedisDashboardCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisDashboardCache{client: client, prefix: "pos:dashboard:"}
}

func (c *RedisDashboardCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisDashboardCache) Close() error {
	return c.client.Close()
}

func (c *RedisDashboardCache) key(shopkeeperID string) string {
	return c.prefix + shopkeeperID
}

func (c *RedisDashboardCache) Get(ctx context.Context, shopkeeperID string, variant string) (*domain.DashboardSummary, bool, error) {
	val, err := c.client.HGet(ctx, c.key(shopkeeperID), variant).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var summary domain.DashboardSummary
	if err := json.Unmarshal([]byte(val), &summary); err != nil {
		return nil, false, err
	}
	return &summary, true, nil
}

func (c *RedisDashboardCache) Set(ctx context.Context, shopkeeperID string, variant string, value *domain.DashboardSummary, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	key := c.key(shopkeeperID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, variant, payload)
	pipe.Expire(ctx, key, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *RedisDashboardCache) Invalidate(ctx context.Context, shopkeeperID string) error {
	return c.client.Del(ctx, c.key(shopkeeperID)).Err()
}
