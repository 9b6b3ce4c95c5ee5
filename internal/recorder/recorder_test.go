package recorder

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"apigate/internal/config"
	"apigate/internal/db"
	"apigate/internal/logger"
	"apigate/internal/model"
)

// failingService wraps a db.Service so that usage inserts always fail.
type failingService struct {
	db.Service
}

func (f *failingService) CreateUsageRecord(ctx context.Context, rec *model.UsageRecord) error {
	return errors.New("disk full")
}

func setupService(t *testing.T) db.Service {
	service, err := db.NewService(config.DatabaseConfig{Type: "sqlite", DSN: "file::memory:"})
	if err != nil {
		t.Fatalf("Failed to create test db service: %v", err)
	}
	return service
}

func TestRecordPersists(t *testing.T) {
	service := setupService(t)
	rec := New(service, logger.New(false))

	rec.Record(model.UsageRecord{
		APIKeyID:       3,
		Endpoint:       "/v1/parse",
		Timestamp:      time.Now(),
		StatusCode:     200,
		ResponseTimeMs: 17,
	})
	rec.Close()

	var rows []model.UsageRecord
	service.GetDB().Find(&rows)
	assert.Len(t, rows, 1)
	assert.Equal(t, uint(3), rows[0].APIKeyID)
	assert.Equal(t, "/v1/parse", rows[0].Endpoint)
}

func TestRecordOrderPreserved(t *testing.T) {
	service := setupService(t)
	rec := New(service, logger.New(false))

	for i := 1; i <= 5; i++ {
		rec.Record(model.UsageRecord{APIKeyID: uint(i), Endpoint: "/n", Timestamp: time.Now(), StatusCode: 200})
	}
	rec.Close()

	var rows []model.UsageRecord
	service.GetDB().Order("id asc").Find(&rows)
	assert.Len(t, rows, 5)
	for i, row := range rows {
		assert.Equal(t, uint(i+1), row.APIKeyID)
	}
}

// An insert failure is logged and swallowed; it must never reach the caller.
func TestRecordFailureIsLoggedNotPropagated(t *testing.T) {
	service := setupService(t)
	var buf bytes.Buffer
	rec := New(&failingService{Service: service}, logger.NewWithWriter(&buf, false))

	rec.Record(model.UsageRecord{APIKeyID: 1, Endpoint: "/x", Timestamp: time.Now(), StatusCode: 200})
	rec.Close()

	assert.Contains(t, buf.String(), "failed to persist usage record")

	var rows []model.UsageRecord
	service.GetDB().Find(&rows)
	assert.Empty(t, rows)
}
