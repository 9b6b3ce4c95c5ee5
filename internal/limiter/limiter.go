// Package limiter enforces the per-key hourly and monthly request quotas.
//
// Two implementations exist behind the same interface: one counts usage
// rows in the database (the reference behavior, soft limits under
// concurrency), the other keeps atomic counters in Redis. The orchestrator
// does not know which one is wired in.
package limiter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"apigate/internal/auth"
	"apigate/internal/logger"
	"apigate/internal/metrics"
	"apigate/internal/model"
)

var (
	ErrKeyInactive          = errors.New("api key is inactive")
	ErrHourlyLimitExceeded  = errors.New("hourly limit exceeded")
	ErrMonthlyLimitExceeded = errors.New("monthly limit exceeded")
)

const (
	HourlyWindow  = time.Hour
	MonthlyWindow = 30 * 24 * time.Hour
)

// Limiter decides whether a request for the given key may proceed at time
// now. A nil error means proceed. Implementations must check the active
// flag first, then the hourly window, then the monthly window, and stop at
// the first failure.
type Limiter interface {
	Check(ctx context.Context, key *model.APIKey, now time.Time) error
}

// Middleware runs the limiter against the key record resolved by the auth
// middleware and translates each failure into its caller-facing response.
func Middleware(l Limiter, log *slog.Logger) gin.HandlerFunc {
	log = logger.Component(log, "limiter")
	return func(c *gin.Context) {
		key, ok := auth.APIKeyFromContext(c)
		if !ok {
			// Auth middleware did not run; treat as an internal fault.
			log.Error("no api key in request context")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		switch err := l.Check(c.Request.Context(), key, time.Now()); {
		case err == nil:
			c.Next()
		case errors.Is(err, ErrKeyInactive):
			metrics.ObserveRejected("inactive")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "API key is inactive"})
		case errors.Is(err, ErrHourlyLimitExceeded):
			metrics.ObserveRejected("hourly_limit")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Hourly limit exceeded"})
		case errors.Is(err, ErrMonthlyLimitExceeded):
			metrics.ObserveRejected("monthly_limit")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Monthly limit exceeded"})
		default:
			log.Error("rate limit check failed", "key_id", key.ID, "error", err)
			metrics.ObserveRejected("store_error")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
	}
}
