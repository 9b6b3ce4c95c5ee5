// Package proxy forwards admitted requests to the upstream origin and
// captures the outcome for usage accounting.
package proxy

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"apigate/internal/auth"
	"apigate/internal/logger"
	"apigate/internal/metrics"
	"apigate/internal/model"
	"apigate/internal/recorder"
)

type contextKey string

const forwardStateContextKey = contextKey("forwardState")

// forwardState travels through the request context from the Director to
// ModifyResponse so the usage record can be assembled after the upstream
// round trip.
type forwardState struct {
	keyID    uint
	keyValue string
	endpoint string
	start    time.Time
}

// Forwarder relays requests to the fixed upstream origin. One attempt per
// request, no retries; a transport failure is terminal for that request.
type Forwarder struct {
	reverseProxy *httputil.ReverseProxy
	targetURL    *url.URL
	logger       *slog.Logger
	recorder     *recorder.Recorder
}

// New creates a Forwarder pointed at the given upstream base URL. The
// timeout bounds how long the upstream may take to start responding.
func New(rec *recorder.Recorder, upstream string, timeout time.Duration, log *slog.Logger) (*Forwarder, error) {
	targetURL, err := url.Parse(upstream)
	if err != nil {
		return nil, err
	}

	f := &Forwarder{
		targetURL: targetURL,
		logger:    logger.Component(log, "proxy"),
		recorder:  rec,
	}

	f.reverseProxy = &httputil.ReverseProxy{
		Transport: &http.Transport{
			ResponseHeaderTimeout: timeout,
		},
		Director: func(req *http.Request) {
			req.URL.Scheme = f.targetURL.Scheme
			req.URL.Host = f.targetURL.Host
			req.Host = f.targetURL.Host

			if req.Header.Get("Content-Type") == "" {
				req.Header.Set("Content-Type", "application/json")
			}

			st, ok := req.Context().Value(forwardStateContextKey).(*forwardState)
			if !ok {
				f.logger.Error("forward state missing from request context")
				return
			}
			st.start = time.Now()

			// The upstream authenticates with the same header and the same
			// key value the caller presented.
			req.Header.Set(auth.KeyHeader, st.keyValue)
		},
		ModifyResponse: f.modifyResponse,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			if errors.Is(err, context.Canceled) || errors.Is(err, http.ErrAbortHandler) {
				f.logger.Warn("client disconnected", "error", err)
				return
			}
			f.logger.Error("upstream unreachable", "path", r.URL.Path, "error", err)
			metrics.ObserveRejected("upstream_unreachable")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"Internal server error"}`))
		},
	}

	return f, nil
}

// modifyResponse runs after the upstream answered. The response bytes pass
// through untouched; this only measures latency and dispatches the usage
// record.
func (f *Forwarder) modifyResponse(resp *http.Response) error {
	if resp.Header.Get("Content-Type") == "" {
		resp.Header.Set("Content-Type", "application/json")
	}

	st, ok := resp.Request.Context().Value(forwardStateContextKey).(*forwardState)
	if !ok {
		f.logger.Error("forward state missing from response context")
		return nil
	}

	elapsed := time.Since(st.start)
	metrics.ObserveAdmitted(elapsed.Seconds())
	f.recorder.Record(model.UsageRecord{
		APIKeyID:       st.keyID,
		Endpoint:       st.endpoint,
		Timestamp:      time.Now(),
		StatusCode:     resp.StatusCode,
		ResponseTimeMs: elapsed.Milliseconds(),
	})

	return nil
}

// Handler adapts the forwarder into the gin chain. It expects the auth
// middleware to have resolved the key record already.
func (f *Forwarder) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := auth.APIKeyFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		st := &forwardState{
			keyID:    key.ID,
			keyValue: key.Key,
			endpoint: c.Request.URL.Path,
		}
		ctx := context.WithValue(c.Request.Context(), forwardStateContextKey, st)
		f.reverseProxy.ServeHTTP(c.Writer, c.Request.WithContext(ctx))
	}
}
