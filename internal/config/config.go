package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// DatabaseConfig holds the database connection information.
type DatabaseConfig struct {
	Type string `yaml:"type"`
	DSN  string `yaml:"dsn"`
}

// UpstreamConfig describes the origin requests are forwarded to.
// Timeout is a Go duration string (e.g. "30s"); the parsed value is
// populated by LoadConfig.
type UpstreamConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`

	ParsedTimeout time.Duration `yaml:"-"`
}

// AdminConfig holds configuration for the admin API.
type AdminConfig struct {
	Password string `yaml:"password"`
}

// RedisConfig holds the optional Redis connection used for atomic
// rate-limit counters. An empty Addr means limits are enforced by
// counting usage rows in the database instead.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RetentionConfig controls the daily purge of old usage records.
// Days is nil when the field is unset, which falls back to the default
// horizon; an explicit 0 or negative value disables the purge.
type RetentionConfig struct {
	Days *int `yaml:"days"`
}

// Config holds the configuration for the gateway.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Admin     AdminConfig     `yaml:"admin"`
	Redis     RedisConfig     `yaml:"redis"`
	Retention RetentionConfig `yaml:"retention"`
	Port      int             `yaml:"port"`
	Debug     bool            `yaml:"debug"`
}

// LoadConfig reads and parses the configuration file. It returns the config
// and a potential warning message. A missing file is not an error; values
// can come entirely from environment variables.
var LoadConfig = func(path string) (*Config, string, error) {
	var config Config
	var warning string

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, "", fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, "", fmt.Errorf("failed to read config file: %w", err)
	}

	// Defaults
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.Upstream.Timeout == "" {
		config.Upstream.Timeout = "30s"
		warning = "upstream.timeout not set, using default of 30s"
	}

	// Override with environment variables if they exist
	if dsn := os.Getenv("APIGATE_DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}
	if dbType := os.Getenv("APIGATE_DATABASE_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if base := os.Getenv("APIGATE_UPSTREAM_URL"); base != "" {
		config.Upstream.BaseURL = base
	}
	if port := os.Getenv("APIGATE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Port = p
		}
	}
	if password := os.Getenv("APIGATE_ADMIN_PASSWORD"); password != "" {
		config.Admin.Password = password
	}
	if addr := os.Getenv("APIGATE_REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
	}
	if days := os.Getenv("APIGATE_RETENTION_DAYS"); days != "" {
		if d, err := strconv.Atoi(days); err == nil {
			config.Retention.Days = &d
		}
	}
	if debug := os.Getenv("APIGATE_DEBUG"); debug != "" {
		config.Debug = (debug == "true")
	}

	// Final validation after overrides
	if config.Database.Type == "" || config.Database.DSN == "" {
		return nil, "", fmt.Errorf("database type and dsn must be configured in config.yaml or via environment variables")
	}
	if config.Upstream.BaseURL == "" {
		return nil, "", fmt.Errorf("upstream.base_url must be configured in config.yaml or via environment variables")
	}

	timeout, err := time.ParseDuration(config.Upstream.Timeout)
	if err != nil {
		return nil, "", fmt.Errorf("invalid upstream.timeout %q: %w", config.Upstream.Timeout, err)
	}
	config.Upstream.ParsedTimeout = timeout

	// Distinguish "retention never mentioned" from an explicit zero: only
	// the former gets the default horizon.
	if config.Retention.Days == nil {
		days := 90
		config.Retention.Days = &days
	}

	return &config, warning, nil
}
