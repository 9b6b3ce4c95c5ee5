package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"apigate/internal/db"
	"apigate/internal/logger"
	"apigate/internal/metrics"
	"apigate/internal/model"
)

// KeyHeader is the header callers present their API key in. The same header
// carries the key to the upstream origin.
const KeyHeader = "api-key"

const apiKeyContextKey = "apigate/apiKey"

// APIKeyFromContext returns the key record resolved by Middleware, if any.
func APIKeyFromContext(c *gin.Context) (*model.APIKey, bool) {
	v, ok := c.Get(apiKeyContextKey)
	if !ok {
		return nil, false
	}
	key, ok := v.(*model.APIKey)
	return key, ok
}

// Middleware resolves the api-key header against the database and stores the
// matched record in the request context. A missing header and an unknown key
// are both rejected with 401; a store failure during lookup is reported the
// same way as an unknown key so callers cannot distinguish the two.
func Middleware(dbService db.Service, log *slog.Logger) gin.HandlerFunc {
	log = logger.Component(log, "auth")
	return func(c *gin.Context) {
		key := c.GetHeader(KeyHeader)
		if key == "" {
			metrics.ObserveRejected("missing_key")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key is required"})
			return
		}

		apiKey, err := dbService.FindAPIKeyByKey(c.Request.Context(), key)
		if err != nil {
			if !errors.Is(err, db.ErrKeyNotFound) {
				log.Error("API key lookup failed", "error", err)
			}
			metrics.ObserveRejected("invalid_key")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			return
		}

		c.Set(apiKeyContextKey, apiKey)
		c.Next()
	}
}

// AdminMiddleware protects the admin API with HTTP basic auth.
func AdminMiddleware(adminPassword string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, password, hasAuth := c.Request.BasicAuth()
		if !hasAuth || user != "admin" || password != adminPassword {
			c.Header("WWW-Authenticate", `Basic realm="Restricted"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
