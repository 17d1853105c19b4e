// Package cache holds the Redis-backed read caches. Stats are the only
// cached read; everything else is served straight from Postgres.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"organiza/backend/internal/domain"
)

const defaultStatsTTL = time.Minute

// StatsCache stores per-calendar event statistics under a short TTL. Writers
// invalidate on every mutation, so the TTL only bounds staleness across
// processes that miss an invalidation.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = defaultStatsTTL
	}
	return &StatsCache{client: client, ttl: ttl}
}

func statsKey(calendarID uuid.UUID) string {
	return "organiza:stats:" + calendarID.String()
}

func (c *StatsCache) Get(ctx context.Context, calendarID uuid.UUID) (domain.EventStats, bool, error) {
	b, err := c.client.Get(ctx, statsKey(calendarID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.EventStats{}, false, nil
	}
	if err != nil {
		return domain.EventStats{}, false, err
	}
	var stats domain.EventStats
	if err := json.Unmarshal(b, &stats); err != nil {
		return domain.EventStats{}, false, err
	}
	return stats, true, nil
}

func (c *StatsCache) Set(ctx context.Context, calendarID uuid.UUID, stats domain.EventStats) error {
	b, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, statsKey(calendarID), b, c.ttl).Err()
}

func (c *StatsCache) Invalidate(ctx context.Context, calendarID uuid.UUID) error {
	return c.client.Del(ctx, statsKey(calendarID)).Err()
}
