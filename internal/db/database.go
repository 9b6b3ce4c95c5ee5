package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"apigate/internal/config"
	"apigate/internal/model"
)

// ErrKeyNotFound is returned when no API key row matches the presented secret.
var ErrKeyNotFound = errors.New("api key not found")

// UsageSummary aggregates usage for the dashboard endpoints.
type UsageSummary struct {
	TotalRequests int64 `json:"total_requests"`
	ActiveKeys    int64 `json:"active_keys"`
}

// UsagePoint is one hourly bucket in the usage time series.
type UsagePoint struct {
	BucketStart time.Time `json:"bucket_start"`
	Requests    int64     `json:"requests"`
}

// Service defines the store operations the rest of the system depends on.
// It exists so handlers and the limiter can be tested against mocks.
type Service interface {
	// Gateway path. These run per forwarded request, so they honor the
	// caller's context.
	FindAPIKeyByKey(ctx context.Context, key string) (*model.APIKey, error)
	CountUsageSince(ctx context.Context, apiKeyID uint, since time.Time) (int64, error)
	CreateUsageRecord(ctx context.Context, rec *model.UsageRecord) error

	// Admin surface.
	ListAPIKeys() ([]model.APIKey, error)
	CreateAPIKey(key *model.APIKey) error
	GetAPIKey(id uint) (*model.APIKey, error)
	UpdateAPIKey(key *model.APIKey) error
	DeleteAPIKey(id uint) error

	// Dashboard reads.
	GetUsageSummary() (*UsageSummary, error)
	GetUsageSeries(since time.Time) ([]UsagePoint, error)

	// Retention.
	PurgeUsageBefore(cutoff time.Time) (int64, error)

	GetDB() *gorm.DB
}

type service struct {
	db *gorm.DB
}

// NewService initializes the database connection based on the provided
// configuration and runs the schema migration.
func NewService(cfg config.DatabaseConfig) (Service, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&model.APIKey{}, &model.UsageRecord{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	return &service{db: db}, nil
}

// GetDB exposes the underlying gorm handle, mainly for tests.
func (s *service) GetDB() *gorm.DB {
	return s.db
}

// FindAPIKeyByKey resolves the presented secret to its key row.
// Returns ErrKeyNotFound when no row matches.
func (s *service) FindAPIKeyByKey(ctx context.Context, key string) (*model.APIKey, error) {
	var apiKey model.APIKey
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&apiKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}
	return &apiKey, nil
}

// CountUsageSince counts usage rows for a key with a timestamp at or after
// the given lower bound. Used for both the hourly and the monthly window.
func (s *service) CountUsageSince(ctx context.Context, apiKeyID uint, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.UsageRecord{}).
		Where("api_key_id = ? AND timestamp >= ?", apiKeyID, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count usage for key %d: %w", apiKeyID, err)
	}
	return count, nil
}

func (s *service) CreateUsageRecord(ctx context.Context, rec *model.UsageRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

func (s *service) ListAPIKeys() ([]model.APIKey, error) {
	var keys []model.APIKey
	if err := s.db.Find(&keys).Error; err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	return keys, nil
}

func (s *service) CreateAPIKey(key *model.APIKey) error {
	if err := s.db.Create(key).Error; err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

func (s *service) GetAPIKey(id uint) (*model.APIKey, error) {
	var key model.APIKey
	if err := s.db.First(&key, id).Error; err != nil {
		return nil, err
	}
	return &key, nil
}

func (s *service) UpdateAPIKey(key *model.APIKey) error {
	return s.db.Save(key).Error
}

func (s *service) DeleteAPIKey(id uint) error {
	return s.db.Delete(&model.APIKey{}, id).Error
}

// GetUsageSummary returns total forwarded request count and the number of
// active keys.
func (s *service) GetUsageSummary() (*UsageSummary, error) {
	var summary UsageSummary
	if err := s.db.Model(&model.UsageRecord{}).Count(&summary.TotalRequests).Error; err != nil {
		return nil, fmt.Errorf("failed to count usage records: %w", err)
	}
	err := s.db.Model(&model.APIKey{}).
		Where("active = ?", true).
		Count(&summary.ActiveKeys).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count active keys: %w", err)
	}
	return &summary, nil
}

// GetUsageSeries buckets usage rows by hour, in Go rather than SQL so all
// three supported dialects behave identically.
func (s *service) GetUsageSeries(since time.Time) ([]UsagePoint, error) {
	var records []model.UsageRecord
	err := s.db.Model(&model.UsageRecord{}).
		Select("timestamp").
		Where("timestamp >= ?", since).
		Order("timestamp asc").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load usage series: %w", err)
	}

	buckets := make(map[time.Time]int64)
	for _, rec := range records {
		buckets[rec.Timestamp.UTC().Truncate(time.Hour)]++
	}

	points := make([]UsagePoint, 0, len(buckets))
	for start := since.UTC().Truncate(time.Hour); !start.After(time.Now().UTC()); start = start.Add(time.Hour) {
		if n, ok := buckets[start]; ok {
			points = append(points, UsagePoint{BucketStart: start, Requests: n})
		}
	}
	return points, nil
}

// PurgeUsageBefore deletes usage rows older than the cutoff and returns the
// number of rows removed.
func (s *service) PurgeUsageBefore(cutoff time.Time) (int64, error) {
	result := s.db.Where("timestamp < ?", cutoff).Delete(&model.UsageRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge usage records: %w", result.Error)
	}
	return result.RowsAffected, nil
}
