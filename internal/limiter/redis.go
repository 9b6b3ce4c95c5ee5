package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"apigate/internal/model"
)

// RedisLimiter enforces quotas with atomic increment-and-check counters in
// Redis, one counter per key per window bucket. Unlike StoreLimiter the
// check itself consumes a slot, so concurrent requests cannot overshoot the
// limit. Buckets are fixed (hour / 30 days) rather than sliding, which is
// the usual trade for an O(1) check.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: "apigate:ratelimit:"}
}

func (l *RedisLimiter) Check(ctx context.Context, key *model.APIKey, now time.Time) error {
	if !key.Active {
		return ErrKeyInactive
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := l.checkWindow(ctx, key.ID, "h", HourlyWindow, key.HourlyLimit, now, ErrHourlyLimitExceeded); err != nil {
		return err
	}
	return l.checkWindow(ctx, key.ID, "m", MonthlyWindow, key.MonthlyLimit, now, ErrMonthlyLimitExceeded)
}

func (l *RedisLimiter) checkWindow(ctx context.Context, keyID uint, tag string, window time.Duration, limit int, now time.Time, exceeded error) error {
	bucket := now.Unix() / int64(window.Seconds())
	counterKey := fmt.Sprintf("%s%d:%s:%d", l.prefix, keyID, tag, bucket)

	count, err := l.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if count == 1 {
		// First hit in this bucket; expire the counter when the window ends.
		if err := l.client.Expire(ctx, counterKey, window).Err(); err != nil {
			return fmt.Errorf("failed to set rate limit counter expiry: %w", err)
		}
	}
	if count > int64(limit) {
		return exceeded
	}
	return nil
}

var _ Limiter = (*RedisLimiter)(nil)
