package config

import "time"

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
}

// OSRMConfig contains routing provider configuration
type OSRMConfig struct {
	BaseURL     string        `yaml:"base_url" validate:"required,url"`
	Profile     string        `yaml:"profile" validate:"required,oneof=driving car bike foot cycling walking"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxAttempts int           `yaml:"max_attempts" validate:"gte=1,lte=10"`
}

// NominatimConfig contains geocoding configuration
type NominatimConfig struct {
	BaseURL   string `yaml:"base_url" validate:"omitempty,url"`
	UserAgent string `yaml:"user_agent"`
	CacheSize int    `yaml:"cache_size" validate:"gte=0"`
}

// CacheConfig contains route cache configuration
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn" validate:"required_if=Enabled true"`
}

// ItineraryConfig contains itinerary defaults
type ItineraryConfig struct {
	DefaultName string        `yaml:"default_name"`
	SyncTimeout time.Duration `yaml:"sync_timeout" validate:"gte=0"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Debug bool `yaml:"debug"`
}

// Config is the root configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	OSRM      OSRMConfig      `yaml:"osrm"`
	Nominatim NominatimConfig `yaml:"nominatim"`
	Cache     CacheConfig     `yaml:"cache"`
	Itinerary ItineraryConfig `yaml:"itinerary"`
	Log       LogConfig       `yaml:"log"`
}
