package limiter

import (
	"context"
	"time"

	"apigate/internal/db"
	"apigate/internal/model"
)

// StoreLimiter enforces quotas by counting usage rows in the database over
// sliding windows computed from now. It is read-only; the usage recorder is
// what makes the counts move.
//
// The check-then-forward sequence is not transactional: two in-flight
// requests for the same key can both pass with one slot left. The overshoot
// is bounded by the number of concurrent requests. RedisLimiter tightens
// this with atomic counters.
type StoreLimiter struct {
	db db.Service
}

func NewStoreLimiter(dbService db.Service) *StoreLimiter {
	return &StoreLimiter{db: dbService}
}

func (l *StoreLimiter) Check(ctx context.Context, key *model.APIKey, now time.Time) error {
	if !key.Active {
		return ErrKeyInactive
	}

	hourly, err := l.db.CountUsageSince(ctx, key.ID, now.Add(-HourlyWindow))
	if err != nil {
		return err
	}
	if hourly >= int64(key.HourlyLimit) {
		return ErrHourlyLimitExceeded
	}

	monthly, err := l.db.CountUsageSince(ctx, key.ID, now.Add(-MonthlyWindow))
	if err != nil {
		return err
	}
	if monthly >= int64(key.MonthlyLimit) {
		return ErrMonthlyLimitExceeded
	}

	return nil
}

var _ Limiter = (*StoreLimiter)(nil)
