package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oggyb/matchpoint/internal/config"
	"github.com/redis/go-redis/v9"
)

// counterTTL bounds how long an unread counter lives without being touched.
// The DB row stays the system of record; Redis is the fast read path.
const counterTTL = time.Hour

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes the Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

// KeyForUnread generates the Redis key for one side's unread counter.
func (c *RedisCache) KeyForUnread(matchID, userID uint64) string {
	return fmt.Sprintf("unread:count:%d:%d", matchID, userID)
}

// GetUnreadCount returns the cached unread counter for one side of a match.
// A cache miss is reported as found=false, not an error.
func (c *RedisCache) GetUnreadCount(ctx context.Context, matchID, userID uint64) (int64, bool, error) {
	key := c.KeyForUnread(matchID, userID)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	// refresh TTL on access
	_ = c.Client.Expire(ctx, key, counterTTL).Err()
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

// SetUnreadCount stores the counter with a TTL refresh.
func (c *RedisCache) SetUnreadCount(ctx context.Context, matchID, userID uint64, count int64) error {
	return c.Client.Set(ctx, c.KeyForUnread(matchID, userID), count, counterTTL).Err()
}

// IncrUnread bumps the cached counter if present; no-op on a cache miss so a
// stale zero is never fabricated.
func (c *RedisCache) IncrUnread(ctx context.Context, matchID, userID uint64) {
	key := c.KeyForUnread(matchID, userID)
	exists, err := c.Client.Exists(ctx, key).Result()
	if err != nil || exists == 0 {
		return
	}
	_, _ = c.Client.Incr(ctx, key).Result()
	_ = c.Client.Expire(ctx, key, counterTTL).Err()
}

// ClearUnread drops the counter, e.g. after the owning side read the
// conversation or the match was deleted.
func (c *RedisCache) ClearUnread(ctx context.Context, matchID, userID uint64) {
	_ = c.Client.Del(ctx, c.KeyForUnread(matchID, userID)).Err()
}
