// Package gateway assembles the request pipeline: CORS, credential
// resolution, rate limiting, then the upstream forward. Every failure mode
// is converted to a terminal JSON response here or in the middleware that
// detected it; nothing propagates past the request boundary.
package gateway

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"apigate/internal/auth"
	"apigate/internal/db"
	"apigate/internal/limiter"
	"apigate/internal/proxy"
)

// allowedHeaders mirrors what browser clients send: the key header variants
// plus content type.
const allowedHeaders = "authorization, x-client-info, apikey, content-type"

// CORS emits permissive cross-origin headers on every response and
// short-circuits preflight requests. OPTIONS is the only path that skips
// the whole pipeline; it never touches the store.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", allowedHeaders)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// Recovery turns panics into the gateway's generic 500 response. Client
// aborts are logged and dropped rather than answered.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				if recovered == http.ErrAbortHandler {
					log.Warn("client connection aborted", "path", c.Request.URL.Path)
					c.Abort()
					return
				}

				log.Error("panic recovered",
					"error", recovered,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			}
		}()
		c.Next()
	}
}

// Register installs the proxy pipeline as the router's fallback so any path
// not claimed by the admin or operational routes is gated and forwarded.
func Register(router *gin.Engine, dbService db.Service, lim limiter.Limiter, fwd *proxy.Forwarder, log *slog.Logger) {
	router.NoRoute(
		auth.Middleware(dbService, log),
		limiter.Middleware(lim, log),
		fwd.Handler(),
	)
}
