package admin

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"apigate/internal/db"
	"apigate/internal/model"
)

type Handler struct {
	db db.Service
}

func NewHandler(dbService db.Service) *Handler {
	return &Handler{db: dbService}
}

// CreateKeyRequest is the payload for issuing a new API key. The secret
// itself is server-generated.
type CreateKeyRequest struct {
	Name         string `json:"name"`
	HourlyLimit  int    `json:"hourly_limit"`
	MonthlyLimit int    `json:"monthly_limit"`
}

// UpdateKeyRequest carries partial updates; nil fields are left unchanged.
type UpdateKeyRequest struct {
	Name         *string `json:"name"`
	HourlyLimit  *int    `json:"hourly_limit"`
	MonthlyLimit *int    `json:"monthly_limit"`
	Active       *bool   `json:"active"`
}

func (h *Handler) ListKeysHandler(c *gin.Context) {
	keys, err := h.db.ListAPIKeys()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list keys"})
		return
	}
	c.JSON(http.StatusOK, keys)
}

func (h *Handler) CreateKeyHandler(c *gin.Context) {
	var req CreateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}
	if req.HourlyLimit <= 0 || req.MonthlyLimit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Limits must be positive"})
		return
	}

	key := &model.APIKey{
		Key:          uuid.NewString(),
		Name:         req.Name,
		HourlyLimit:  req.HourlyLimit,
		MonthlyLimit: req.MonthlyLimit,
		Active:       true,
	}
	if err := h.db.CreateAPIKey(key); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create key"})
		return
	}
	c.JSON(http.StatusCreated, key)
}

func (h *Handler) GetKeyHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	key, err := h.db.GetAPIKey(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Key not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get key"})
		return
	}
	c.JSON(http.StatusOK, key)
}

func (h *Handler) UpdateKeyHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req UpdateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if (req.HourlyLimit != nil && *req.HourlyLimit <= 0) ||
		(req.MonthlyLimit != nil && *req.MonthlyLimit <= 0) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Limits must be positive"})
		return
	}

	key, err := h.db.GetAPIKey(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Key not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get key"})
		return
	}

	if req.Name != nil {
		key.Name = *req.Name
	}
	if req.HourlyLimit != nil {
		key.HourlyLimit = *req.HourlyLimit
	}
	if req.MonthlyLimit != nil {
		key.MonthlyLimit = *req.MonthlyLimit
	}
	if req.Active != nil {
		key.Active = *req.Active
	}

	if err := h.db.UpdateAPIKey(key); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update key"})
		return
	}
	c.JSON(http.StatusOK, key)
}

func (h *Handler) DeleteKeyHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.db.DeleteAPIKey(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete key"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Key deleted"})
}

func (h *Handler) UsageSummaryHandler(c *gin.Context) {
	summary, err := h.db.GetUsageSummary()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load usage summary"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// UsageSeriesHandler returns hourly request counts for the trailing window,
// 24 hours by default and capped at 30 days.
func (h *Handler) UsageSeriesHandler(c *gin.Context) {
	hours := 24
	if v := c.Query("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 720 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hours parameter"})
			return
		}
		hours = n
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	points, err := h.db.GetUsageSeries(since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load usage series"})
		return
	}
	c.JSON(http.StatusOK, points)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid key ID"})
		return 0, false
	}
	return uint(id), true
}
