package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when neither an explicit path nor ROUTER_CONFIG is set
const DefaultPath = "config.yml"

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
		OSRM: OSRMConfig{
			BaseURL:     "https://router.project-osrm.org",
			Profile:     "driving",
			Timeout:     10 * time.Second,
			MaxAttempts: 3,
		},
		Nominatim: NominatimConfig{
			CacheSize: 256,
		},
		Cache: CacheConfig{
			Enabled: true,
			DSN:     "file:routecache?mode=memory&cache=shared",
		},
		Itinerary: ItineraryConfig{
			DefaultName: "Nouveau trajet",
			SyncTimeout: 15 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the YAML file, a .env file and
// environment variables, in increasing order of precedence.
//
// An explicit path must exist. The default path is optional.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("[CONFIG] Ignoring unreadable .env: err=%v", err)
	}

	explicit := path != ""
	if !explicit {
		path = os.Getenv("ROUTER_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		log.Printf("[CONFIG] Loaded configuration: path=%s", path)
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		log.Printf("[CONFIG] No configuration file, using defaults: path=%s", path)
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("OSRM_BASE_URL"); v != "" {
		cfg.OSRM.BaseURL = v
	}
	if v := os.Getenv("OSRM_PROFILE"); v != "" {
		cfg.OSRM.Profile = v
	}
	if v := os.Getenv("OSRM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid OSRM_TIMEOUT %q: %w", v, err)
		}
		cfg.OSRM.Timeout = d
	}
	if v := os.Getenv("NOMINATIM_BASE_URL"); v != "" {
		cfg.Nominatim.BaseURL = v
	}
	if v := os.Getenv("ROUTE_CACHE_DSN"); v != "" {
		cfg.Cache.DSN = v
	}
	if v := os.Getenv("ROUTE_CACHE_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid ROUTE_CACHE_ENABLED %q: %w", v, err)
		}
		cfg.Cache.Enabled = b
	}
	if v := os.Getenv("LOG_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid LOG_DEBUG %q: %w", v, err)
		}
		cfg.Log.Debug = b
	}
	return nil
}
