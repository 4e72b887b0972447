package albums

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"mediadrop/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache keeps albums by token. Failures are never fatal, a miss falls back to the database
type Cache interface {
	Get(ctx context.Context, token string) (*models.Album, bool)
	Set(ctx context.Context, album *models.Album)
	Delete(ctx context.Context, tokens ...string)
}

type NopCache struct{}

func (NopCache) Get(context.Context, string) (*models.Album, bool) { return nil, false }
func (NopCache) Set(context.Context, *models.Album)                {}
func (NopCache) Delete(context.Context, ...string)                 {}

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, log: log}
}

func cacheKey(token string) string {
	return "album:token:" + token
}

func (c *RedisCache) Get(ctx context.Context, token string) (*models.Album, bool) {
	data, err := c.rdb.Get(ctx, cacheKey(token)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("album cache read failed", zap.Error(err))
		}
		return nil, false
	}
	album := &models.Album{}
	if err = json.Unmarshal(data, album); err != nil {
		c.log.Warn("album cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return album, true
}

func (c *RedisCache) Set(ctx context.Context, album *models.Album) {
	data, err := json.Marshal(album)
	if err != nil {
		return
	}
	if err = c.rdb.Set(ctx, cacheKey(album.Token), data, c.ttl).Err(); err != nil {
		c.log.Warn("album cache write failed", zap.Error(err))
	}
}

func (c *RedisCache) Delete(ctx context.Context, tokens ...string) {
	keys := make([]string, 0, len(tokens))
	for _, t := range tokens {
		keys = append(keys, cacheKey(t))
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("album cache delete failed", zap.Error(err))
	}
}
