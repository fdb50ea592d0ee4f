package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/playperu/rallye/internal/rallye"
)

// LocationCache holds the latest position per group so the admin live view
// does not hit the database on every poll.
type LocationCache interface {
	Put(ctx context.Context, code string, groupID int64, pos rallye.Position) error
	// Get reports false on a cache miss.
	Get(ctx context.Context, code string, groupID int64) (rallye.Position, bool, error)
}

type RedisLocationCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLocationCache(rdb *redis.Client, ttl time.Duration) *RedisLocationCache {
	return &RedisLocationCache{rdb: rdb, ttl: ttl}
}

func locationKey(code string, groupID int64) string {
	return fmt.Sprintf("rallye:location:%s:%d", roomKey(code), groupID)
}

func (c *RedisLocationCache) Put(ctx context.Context, code string, groupID int64, pos rallye.Position) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, locationKey(code, groupID), data, c.ttl).Err()
}

func (c *RedisLocationCache) Get(ctx context.Context, code string, groupID int64) (rallye.Position, bool, error) {
	data, err := c.rdb.Get(ctx, locationKey(code, groupID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return rallye.Position{}, false, nil
	}
	if err != nil {
		return rallye.Position{}, false, err
	}
	var pos rallye.Position
	if err := json.Unmarshal(data, &pos); err != nil {
		return rallye.Position{}, false, err
	}
	return pos, true, nil
}
