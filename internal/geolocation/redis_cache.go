package geolocation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"memeatlas/internal/logger"
	"memeatlas/models"
)

// SharedCache is a geolocation tier shared between processes.
type SharedCache interface {
	Get(ctx context.Context, ip string) (SharedEntry, bool)
	Set(ctx context.Context, ip string, entry SharedEntry)
}

// SharedEntry carries the time the location was first resolved so every
// process ages it from the same instant.
type SharedEntry struct {
	Geo        models.GeoLocation `json:"geo"`
	InsertedAt time.Time          `json:"inserted_at"`
}

// RedisCache stores resolved locations as JSON under geo:<ip>. Errors are
// logged and read as misses.
type RedisCache struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewRedisCache(rc *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rc: rc, ttl: ttl}
}

// OpenRedis returns nil when addr is empty.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

func redisKey(ip string) string { return "geo:" + ip }

func (c *RedisCache) Get(ctx context.Context, ip string) (SharedEntry, bool) {
	var entry SharedEntry
	s, err := c.rc.Get(ctx, redisKey(ip)).Result()
	if err != nil {
		if err != redis.Nil {
			logger.L().Warn("geo_redis_get_error", "ip", ip, "err", err)
		}
		return entry, false
	}
	if err := json.Unmarshal([]byte(s), &entry); err != nil {
		logger.L().Warn("geo_redis_decode_error", "ip", ip, "err", err)
		return entry, false
	}
	return entry, true
}

func (c *RedisCache) Set(ctx context.Context, ip string, entry SharedEntry) {
	b, err := json.Marshal(entry)
	if err != nil {
		return
	}
	ttl := c.ttl - time.Since(entry.InsertedAt)
	if ttl <= 0 {
		return
	}
	if err := c.rc.Set(ctx, redisKey(ip), b, ttl).Err(); err != nil {
		logger.L().Warn("geo_redis_set_error", "ip", ip, "err", err)
	}
}
