package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"apigate/internal/config"
	"apigate/internal/db"
	"apigate/internal/logger"
	"apigate/internal/model"
)

func setupAuthRouter(t *testing.T) (*gin.Engine, db.Service) {
	gin.SetMode(gin.TestMode)

	service, err := db.NewService(config.DatabaseConfig{Type: "sqlite", DSN: "file::memory:"})
	if err != nil {
		t.Fatalf("Failed to create test db service: %v", err)
	}

	router := gin.New()
	router.Use(Middleware(service, logger.New(false)))
	router.GET("/", func(c *gin.Context) {
		key, ok := APIKeyFromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, key.Name)
	})
	return router, service
}

func TestMiddlewareMissingKey(t *testing.T) {
	router, _ := setupAuthRouter(t)

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"API key is required"}`, rr.Body.String())
}

func TestMiddlewareUnknownKey(t *testing.T) {
	router, _ := setupAuthRouter(t)

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(KeyHeader, "nope")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"Invalid API key"}`, rr.Body.String())
}

func TestMiddlewareValidKey(t *testing.T) {
	router, service := setupAuthRouter(t)
	service.GetDB().Create(&model.APIKey{Key: "good-key", Name: "payments", HourlyLimit: 10, MonthlyLimit: 100, Active: true})

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(KeyHeader, "good-key")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "payments", rr.Body.String())
}

// The resolver resolves an inactive key; rejecting it is the limiter's job.
func TestMiddlewareInactiveKeyStillResolves(t *testing.T) {
	router, service := setupAuthRouter(t)
	service.GetDB().Create(&model.APIKey{Key: "dormant", Name: "dormant", HourlyLimit: 10, MonthlyLimit: 100, Active: false})

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(KeyHeader, "dormant")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAdminMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(AdminMiddleware("hunter2"))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req.SetBasicAuth("admin", "wrong")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req.SetBasicAuth("admin", "hunter2")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
