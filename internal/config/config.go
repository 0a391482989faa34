package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"salonbook/internal/availability"
	"salonbook/internal/model"
)

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	HTTP struct {
		Port           int     `yaml:"port"`
		RateLimitRPS   float64 `yaml:"rate_limit_rps"`
		RateLimitBurst int     `yaml:"rate_limit_burst"`
	} `yaml:"http"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Audit struct {
		Enabled       bool   `yaml:"enabled"`
		ExportDir     string `yaml:"export_dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"audit"`

	Booking BookingConfig `yaml:"booking"`

	CatalogPath string `yaml:"catalog_path"`
}

// BookingConfig tunes the slot engine and the reservation ledger.
type BookingConfig struct {
	Timezone              string `yaml:"timezone"`
	HoldTTLMinutes        int    `yaml:"hold_ttl_minutes"`
	GranularityMinutes    int    `yaml:"granularity_minutes"`
	LockBackend           string `yaml:"lock_backend"` // memory | redis
	HoldBackend           string `yaml:"hold_backend"` // memory | redis
	ReaperIntervalSeconds int    `yaml:"reaper_interval_seconds"`

	Fallback struct {
		Enabled   *bool  `yaml:"enabled"`
		StartTime string `yaml:"start_time"`
		EndTime   string `yaml:"end_time"`
	} `yaml:"fallback"`
}

// Backend names.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "data/salonbook.db"
	}
	if c.CatalogPath == "" {
		c.CatalogPath = "configs/salon.yaml"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.RateLimitRPS <= 0 {
		c.HTTP.RateLimitRPS = 5
	}
	if c.HTTP.RateLimitBurst <= 0 {
		c.HTTP.RateLimitBurst = 10
	}
	if c.Booking.LockBackend == "" {
		c.Booking.LockBackend = BackendMemory
	}
	if c.Booking.HoldBackend == "" {
		c.Booking.HoldBackend = BackendMemory
	}
	if c.Booking.Fallback.StartTime == "" {
		c.Booking.Fallback.StartTime = "10:00"
	}
	if c.Booking.Fallback.EndTime == "" {
		c.Booking.Fallback.EndTime = "19:00"
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	for name, backend := range map[string]string{
		"booking.lock_backend": c.Booking.LockBackend,
		"booking.hold_backend": c.Booking.HoldBackend,
	} {
		if backend != BackendMemory && backend != BackendRedis {
			return fmt.Errorf("%s: unknown backend %q", name, backend)
		}
		if backend == BackendRedis && c.Redis.Address == "" {
			return fmt.Errorf("%s: redis backend requires redis.address", name)
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.FallbackPolicy(); err != nil {
		return err
	}
	return nil
}

// Location returns the salon's timezone (UTC when unset).
func (c *Config) Location() (*time.Location, error) {
	if c.Booking.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return nil, fmt.Errorf("booking.timezone: %w", err)
	}
	return loc, nil
}

func (c *Config) HoldTTL() time.Duration {
	if c.Booking.HoldTTLMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.Booking.HoldTTLMinutes) * time.Minute
}

func (c *Config) Granularity() time.Duration {
	if c.Booking.GranularityMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.Booking.GranularityMinutes) * time.Minute
}

// ReaperInterval is zero when the reaper is disabled.
func (c *Config) ReaperInterval() time.Duration {
	if c.Booking.ReaperIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Booking.ReaperIntervalSeconds) * time.Second
}

// FallbackPolicy returns the house-hours policy. It is enabled unless
// booking.fallback.enabled is explicitly false.
func (c *Config) FallbackPolicy() (availability.FallbackPolicy, error) {
	start, err := model.ParseTimeOfDay(c.Booking.Fallback.StartTime)
	if err != nil {
		return availability.FallbackPolicy{}, fmt.Errorf("booking.fallback.start_time: %w", err)
	}
	end, err := model.ParseTimeOfDay(c.Booking.Fallback.EndTime)
	if err != nil {
		return availability.FallbackPolicy{}, fmt.Errorf("booking.fallback.end_time: %w", err)
	}
	if start >= end {
		return availability.FallbackPolicy{}, fmt.Errorf("booking.fallback: start_time must be before end_time")
	}
	enabled := c.Booking.Fallback.Enabled == nil || *c.Booking.Fallback.Enabled
	return availability.FallbackPolicy{Enabled: enabled, Start: start, End: end}, nil
}
