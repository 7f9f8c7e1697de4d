// Package config defines the application configuration and its loader.
package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Cache    CacheConfig    `mapstructure:"cache"    validate:"required"`
	Suggest  SuggestConfig  `mapstructure:"suggest"  validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// CORSAllowedOrigins lists the origins permitted by the CORS
	// middleware. An empty list allows none.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// CacheConfig configures the in-process task cache: the entry bound and
// the two expiry clocks (time since write, time since access).
type CacheConfig struct {
	MaxEntries int           `mapstructure:"max_entries" validate:"required,gt=0"`
	MaxAge     time.Duration `mapstructure:"max_age"     validate:"required"`
	MaxIdle    time.Duration `mapstructure:"max_idle"    validate:"required"`
}

// SuggestConfig configures the suggestion index.
type SuggestConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"required"`
}
