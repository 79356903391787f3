package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medimeet/telehealth-api/internal/model"
)

// SlotCache holds recently computed slot listings. It is strictly an
// accelerator: every error degrades to a recompute, never to a failure.
type SlotCache interface {
	Get(ctx context.Context, key string) ([]*model.DaySlots, bool)
	Set(ctx context.Context, key string, days []*model.DaySlots)
}

type RedisSlotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSlotCache(url string, ttl time.Duration) (*RedisSlotCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisSlotCache{client: redis.NewClient(opts), ttl: ttl}, nil
}

func (c *RedisSlotCache) Get(ctx context.Context, key string) ([]*model.DaySlots, bool) {
	raw, err := c.client.Get(ctx, "slots:"+key).Bytes()
	if err != nil {
		return nil, false
	}
	var days []*model.DaySlots
	if err := json.Unmarshal(raw, &days); err != nil {
		return nil, false
	}
	return days, true
}

func (c *RedisSlotCache) Set(ctx context.Context, key string, days []*model.DaySlots) {
	raw, err := json.Marshal(days)
	if err != nil {
		return
	}
	c.client.Set(ctx, "slots:"+key, raw, c.ttl)
}

// NopSlotCache is used when Redis is not configured.
type NopSlotCache struct{}

func (NopSlotCache) Get(ctx context.Context, key string) ([]*model.DaySlots, bool) { return nil, false }
func (NopSlotCache) Set(ctx context.Context, key string, days []*model.DaySlots)   {}
