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

// RedisRosterCache stores roster snapshots as JSON under
// exam:{id}:roster[:{classes}].
type RedisRosterCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisRosterCache creates a cache whose snapshots expire after ttl.
func NewRedisRosterCache(rdb *redis.Client, ttl time.Duration) *RedisRosterCache {
	return &RedisRosterCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached snapshot, or nil on a miss.
func (c *RedisRosterCache) Get(ctx context.Context, examID string, classes []string) ([]model.RosterStudent, error) {
	data, err := c.rdb.Get(ctx, config.CacheKey.ExamRosterKey(examID, classes)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get roster: %w", err)
	}
	var students []model.RosterStudent
	if err := json.Unmarshal(data, &students); err != nil {
		return nil, fmt.Errorf("unmarshal roster: %w", err)
	}
	return students, nil
}

// Set caches a snapshot.
func (c *RedisRosterCache) Set(ctx context.Context, examID string, classes []string, students []model.RosterStudent) error {
	raw, err := json.Marshal(students)
	if err != nil {
		return fmt.Errorf("marshal roster: %w", err)
	}
	return c.rdb.Set(ctx, config.CacheKey.ExamRosterKey(examID, classes), raw, c.ttl).Err()
}

// Invalidate drops every cached snapshot. It runs after enrollment changes.
func (c *RedisRosterCache) Invalidate(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, config.CacheKey.ExamRosterPattern(), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan roster keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}
