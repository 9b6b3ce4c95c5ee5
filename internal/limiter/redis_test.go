package limiter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"apigate/internal/model"
)

func setupRedisLimiter(t *testing.T) (*RedisLimiter, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLimiter(client), s
}

func hourlyCounterKey(keyID uint, now time.Time) string {
	bucket := now.Unix() / int64(HourlyWindow.Seconds())
	return fmt.Sprintf("apigate:ratelimit:%d:h:%d", keyID, bucket)
}

// An inactive key is rejected before Redis is consulted, so no counter moves.
func TestRedisCheckInactiveKey(t *testing.T) {
	lim, s := setupRedisLimiter(t)
	key := &model.APIKey{Key: "k", HourlyLimit: 10, MonthlyLimit: 100, Active: false}
	key.ID = 1

	err := lim.Check(context.Background(), key, time.Now())
	assert.ErrorIs(t, err, ErrKeyInactive)
	assert.Empty(t, s.Keys())
}

// Unlike the store-backed limiter, the check itself consumes a slot: with an
// hourly limit of 2 the first two checks pass and the third is rejected.
func TestRedisCheckConsumesSlot(t *testing.T) {
	lim, _ := setupRedisLimiter(t)
	key := &model.APIKey{Key: "k", HourlyLimit: 2, MonthlyLimit: 100, Active: true}
	key.ID = 1
	now := time.Now()

	assert.NoError(t, lim.Check(context.Background(), key, now))
	assert.NoError(t, lim.Check(context.Background(), key, now))
	assert.ErrorIs(t, lim.Check(context.Background(), key, now), ErrHourlyLimitExceeded)
}

func TestRedisCheckMonthlyLimit(t *testing.T) {
	lim, _ := setupRedisLimiter(t)
	key := &model.APIKey{Key: "k", HourlyLimit: 100, MonthlyLimit: 2, Active: true}
	key.ID = 1
	now := time.Now()

	assert.NoError(t, lim.Check(context.Background(), key, now))
	assert.NoError(t, lim.Check(context.Background(), key, now))
	assert.ErrorIs(t, lim.Check(context.Background(), key, now), ErrMonthlyLimitExceeded)
}

// The first hit in a bucket sets an expiry so stale counters cannot pile up.
func TestRedisCheckSetsCounterExpiry(t *testing.T) {
	lim, s := setupRedisLimiter(t)
	key := &model.APIKey{Key: "k", HourlyLimit: 10, MonthlyLimit: 100, Active: true}
	key.ID = 7
	now := time.Now()

	assert.NoError(t, lim.Check(context.Background(), key, now))

	counterKey := hourlyCounterKey(7, now)
	assert.True(t, s.Exists(counterKey))
	ttl := s.TTL(counterKey)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, HourlyWindow)
}

// Buckets are fixed windows keyed on now: a full hourly bucket stops counting
// against the key once the clock moves into the next one.
func TestRedisCheckNewBucketResetsCount(t *testing.T) {
	lim, _ := setupRedisLimiter(t)
	key := &model.APIKey{Key: "k", HourlyLimit: 1, MonthlyLimit: 100, Active: true}
	key.ID = 1
	now := time.Now()

	assert.NoError(t, lim.Check(context.Background(), key, now))
	assert.ErrorIs(t, lim.Check(context.Background(), key, now), ErrHourlyLimitExceeded)

	assert.NoError(t, lim.Check(context.Background(), key, now.Add(HourlyWindow)))
}

// A Redis failure surfaces as a plain error, not as one of the quota
// sentinels, so the middleware answers 500 rather than 429.
func TestRedisCheckBackendError(t *testing.T) {
	lim, s := setupRedisLimiter(t)
	key := &model.APIKey{Key: "k", HourlyLimit: 10, MonthlyLimit: 100, Active: true}
	key.ID = 1

	s.Close()

	err := lim.Check(context.Background(), key, time.Now())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrHourlyLimitExceeded)
	assert.NotErrorIs(t, err, ErrMonthlyLimitExceeded)
}
