package model

import (
	"time"
)

// UsageRecord is the audit row written for every request the gateway
// forwarded upstream. Timestamp is the sole windowing key for rate-limit
// counting, so it is indexed together with the key id.
type UsageRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	APIKeyID       uint      `gorm:"index:idx_usage_key_time,priority:1;not null" json:"api_key_id"`
	Endpoint       string    `gorm:"type:varchar(512);not null" json:"endpoint"`
	Timestamp      time.Time `gorm:"index:idx_usage_key_time,priority:2;not null" json:"timestamp"`
	StatusCode     int       `gorm:"not null" json:"status_code"`
	ResponseTimeMs int64     `gorm:"not null" json:"response_time_ms"`
}

func (UsageRecord) TableName() string {
	return "usage_records"
}
