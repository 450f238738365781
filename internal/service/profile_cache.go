package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stemsi/exstem-ingest/internal/config"
	"github.com/stemsi/exstem-ingest/internal/model"
)

// RedisProfileCache stores profiles as JSON under exam:{id}:profile.
type RedisProfileCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisProfileCache creates a cache whose entries expire after ttl
// (0 keeps them until overwritten).
func NewRedisProfileCache(rdb *redis.Client, ttl time.Duration) *RedisProfileCache {
	return &RedisProfileCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached profile, or nil on a miss.
func (c *RedisProfileCache) Get(ctx context.Context, id string) (*model.ExamProfile, error) {
	data, err := c.rdb.Get(ctx, config.CacheKey.ExamProfileKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	var p model.ExamProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	return &p, nil
}

// Set caches p.
func (c *RedisProfileCache) Set(ctx context.Context, p *model.ExamProfile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	return c.rdb.Set(ctx, config.CacheKey.ExamProfileKey(p.ID), raw, c.ttl).Err()
}
