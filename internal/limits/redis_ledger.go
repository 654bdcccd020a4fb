package limits

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alex199571/Student-Bot/internal/models"
)

// minDailyTTL guards against clock skew around midnight: a key armed in the
// last seconds of a day must still outlive the in-flight action.
const minDailyTTL = 60 * time.Second

// clampDecr decrements a counter without letting it go negative. SET keeps the
// remaining TTL so the key still expires at midnight.
var clampDecr = redis.NewScript(`
local v = redis.call('DECR', KEYS[1])
if v < 0 then
  redis.call('SET', KEYS[1], '0', 'KEEPTTL')
  return 0
end
return v
`)

// RedisCounter keeps daily counters in Redis keyed by (resource, user, day)
// with a TTL that expires at UTC midnight. An expired or absent key reads as
// zero, so no explicit daily rollover is needed; the native INCR keeps
// concurrent requests from the same user from both passing a ceiling they
// should not both pass.
type RedisCounter struct {
	rdb *redis.Client
}

func NewRedisCounter(rdb *redis.Client) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

func dailyKey(user *models.User, res Resource) string {
	return fmt.Sprintf("daily:%s:%d:%s", res, user.TelegramID, DayKeyNow())
}

// ttlUntilMidnight computes how long the current UTC day bucket should live.
func ttlUntilMidnight(now time.Time) time.Duration {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	ttl := midnight.Sub(now)
	if ttl < minDailyTTL {
		ttl = minDailyTTL
	}
	return ttl
}

func (c *RedisCounter) Increment(ctx context.Context, user *models.User, res Resource) (int, error) {
	key := dailyKey(user, res)
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if n == 1 {
		// First increment of a new day arms the expiry.
		if err := c.rdb.Expire(ctx, key, ttlUntilMidnight(time.Now())).Err(); err != nil {
			return int(n), fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return int(n), nil
}

func (c *RedisCounter) Decrement(ctx context.Context, user *models.User, res Resource) error {
	key := dailyKey(user, res)
	if err := clampDecr.Run(ctx, c.rdb, []string{key}).Err(); err != nil {
		return fmt.Errorf("decr %s: %w", key, err)
	}
	return nil
}

func (c *RedisCounter) Get(ctx context.Context, user *models.User, res Resource) (int, error) {
	key := dailyKey(user, res)
	n, err := c.rdb.Get(ctx, key).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	return n, nil
}

func (c *RedisCounter) Reset(ctx context.Context, user *models.User) error {
	keys := make([]string, 0, len(allResources))
	for _, res := range allResources {
		keys = append(keys, dailyKey(user, res))
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("del daily keys: %w", err)
	}
	return nil
}
