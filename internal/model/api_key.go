package model

import (
	"gorm.io/gorm"
)

// APIKey represents a client credential issued through the admin API.
// The gateway only reads these rows; creation, limit changes and
// revocation happen through the admin endpoints.
type APIKey struct {
	gorm.Model
	Key          string `gorm:"type:varchar(255);uniqueIndex;not null" json:"key"`
	Name         string `gorm:"type:varchar(128);not null" json:"name"`
	HourlyLimit  int    `gorm:"not null" json:"hourly_limit"`
	MonthlyLimit int    `gorm:"not null" json:"monthly_limit"`
	Active       bool   `gorm:"default:true;not null" json:"active"`
}
