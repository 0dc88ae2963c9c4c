// Package config defines the Pacer application configuration.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/GoCodeAlone/pacer/calendar"
	"github.com/GoCodeAlone/pacer/estimate"
	"github.com/GoCodeAlone/pacer/jobs"
	"github.com/GoCodeAlone/pacer/provider"
	"github.com/GoCodeAlone/pacer/schedule"
	"github.com/GoCodeAlone/pacer/storage"
)

// EnvPrefix prefixes environment overrides. PACER_AUTH__JWT_SECRET sets
// auth.jwt_secret.
const EnvPrefix = "PACER_"

// Config is the top-level Pacer configuration.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Auth      AuthConfig      `json:"auth" yaml:"auth"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Provider  provider.Config `json:"provider" yaml:"provider"`
	Estimator EstimatorConfig `json:"estimator" yaml:"estimator"`
	Schedule  ScheduleConfig  `json:"schedule" yaml:"schedule"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
	Events    EventsConfig    `json:"events" yaml:"events"`
	LogLevel  string          `json:"log_level" yaml:"log_level"`
	LogFormat string          `json:"log_format" yaml:"log_format"` // "text" or "json"
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr                string `json:"addr" yaml:"addr"` // listen address, e.g., ":9090"
	ReadTimeoutSeconds  int    `json:"read_timeout_seconds" yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `json:"write_timeout_seconds" yaml:"write_timeout_seconds"`

	// CORSOrigins enables CORS for browser clients; empty disables it.
	CORSOrigins []string `json:"cors_origins,omitempty" yaml:"cors_origins"`
}

// AuthConfig controls API authentication.
type AuthConfig struct {
	JWTSecret       string `json:"-" yaml:"jwt_secret"`
	AdminUser       string `json:"admin_user" yaml:"admin_user"`
	AdminPass       string `json:"-" yaml:"admin_pass"` // bcrypt hash
	TokenTTLMinutes int    `json:"token_ttl_minutes" yaml:"token_ttl_minutes"`

	// Disabled serves the API without authentication. Only for local use.
	Disabled bool `json:"disabled" yaml:"disabled"`
}

// StorageConfig selects the SQL backend.
type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `json:"-" yaml:"dsn"`
}

// EstimatorConfig tunes the estimator.
type EstimatorConfig struct {
	TimeoutSeconds int            `json:"timeout_seconds" yaml:"timeout_seconds"`
	RatePerMinute  int            `json:"rate_per_minute" yaml:"rate_per_minute"`
	Workday        string         `json:"workday" yaml:"workday"` // shown to the external estimator
	Tiers          estimate.Tiers `json:"tiers" yaml:"tiers"`
}

// ScheduleConfig defines the working day.
type ScheduleConfig struct {
	DayStart    string       `json:"day_start" yaml:"day_start"`
	DayEnd      string       `json:"day_end" yaml:"day_end"`
	TaskCeiling float64      `json:"task_ceiling" yaml:"task_ceiling"`
	Timezone    string       `json:"timezone" yaml:"timezone"`
	Lunch       *BreakConfig `json:"lunch,omitempty" yaml:"lunch"`

	// DailyPlanCron triggers the morning recommendation. Empty disables it.
	DailyPlanCron string `json:"daily_plan_cron" yaml:"daily_plan_cron"`
}

// BreakConfig is a daily break applied to every working day.
type BreakConfig struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
	Label string `json:"label" yaml:"label"`
}

// CacheConfig selects where the pace profile is cached.
type CacheConfig struct {
	Kind       string `json:"kind" yaml:"kind"` // "memory" or "redis"
	Addr       string `json:"addr" yaml:"addr"`
	Password   string `json:"-" yaml:"password"`
	DB         int    `json:"db" yaml:"db"`
	TTLSeconds int    `json:"ttl_seconds" yaml:"ttl_seconds"`
}

// EventsConfig sizes the in-process event bus.
type EventsConfig struct {
	History int `json:"history" yaml:"history"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:                ":9090",
			ReadTimeoutSeconds:  15,
			WriteTimeoutSeconds: 30,
		},
		Auth: AuthConfig{
			AdminUser:       "admin",
			TokenTTLMinutes: 24 * 60,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "./data/pacer.db",
		},
		Provider: provider.Config{Kind: "none"},
		Estimator: EstimatorConfig{
			TimeoutSeconds: 10,
			RatePerMinute:  30,
			Workday:        "08:00-16:00",
			Tiers:          estimate.DefaultTiers(),
		},
		Schedule: ScheduleConfig{
			DayStart:    "08:00",
			DayEnd:      "16:00",
			TaskCeiling: 0.7,
			Lunch:       &BreakConfig{Start: "12:00", End: "13:00", Label: "Lunch"},

			DailyPlanCron: "0 7 * * 1-5",
		},
		Cache:     CacheConfig{Kind: "memory", TTLSeconds: 3600},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads the config file at path (YAML or JSON) over the defaults and
// applies PACER_ environment overrides. An empty path loads defaults and
// environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that would otherwise fail at startup.
func (c *Config) Validate() error {
	var errs []error
	if _, err := storage.ParseDialect(c.Storage.Driver); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.ScheduleConfig(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.StandingIntervals(); err != nil {
		errs = append(errs, err)
	}
	if err := jobs.ValidateSpec(c.Schedule.DailyPlanCron); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Cache.Kind) {
	case "", "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown cache kind %q", c.Cache.Kind))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ScheduleConfig converts the schedule section for schedule.New.
func (c *Config) ScheduleConfig() (schedule.Config, error) {
	out := schedule.DefaultConfig()
	var err error
	if c.Schedule.DayStart != "" {
		if out.DayStart, err = calendar.ParseClock(c.Schedule.DayStart); err != nil {
			return out, fmt.Errorf("schedule.day_start: %w", err)
		}
	}
	if c.Schedule.DayEnd != "" {
		if out.DayEnd, err = calendar.ParseClock(c.Schedule.DayEnd); err != nil {
			return out, fmt.Errorf("schedule.day_end: %w", err)
		}
	}
	if c.Schedule.TaskCeiling != 0 {
		out.TaskCeiling = c.Schedule.TaskCeiling
	}
	if c.Schedule.Timezone != "" {
		if out.Location, err = time.LoadLocation(c.Schedule.Timezone); err != nil {
			return out, fmt.Errorf("schedule.timezone: %w", err)
		}
	}
	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

// StandingIntervals returns the daily breaks every day carries.
func (c *Config) StandingIntervals() ([]calendar.Interval, error) {
	l := c.Schedule.Lunch
	if l == nil || (l.Start == "" && l.End == "") {
		return nil, nil
	}
	start, err := calendar.ParseClock(l.Start)
	if err != nil {
		return nil, fmt.Errorf("schedule.lunch.start: %w", err)
	}
	end, err := calendar.ParseClock(l.End)
	if err != nil {
		return nil, fmt.Errorf("schedule.lunch.end: %w", err)
	}
	label := l.Label
	if label == "" {
		label = "Lunch"
	}
	iv := calendar.Interval{ID: "standing-lunch", Start: start, End: end, Label: label, Kind: calendar.KindBreak}
	if err := iv.Validate(); err != nil {
		return nil, fmt.Errorf("schedule.lunch: %w", err)
	}
	return []calendar.Interval{iv}, nil
}

// EstimateConfig converts the estimator section for estimate.New.
func (c *Config) EstimateConfig() estimate.Config {
	out := estimate.DefaultConfig()
	if c.Estimator.TimeoutSeconds > 0 {
		out.Timeout = time.Duration(c.Estimator.TimeoutSeconds) * time.Second
	}
	if c.Estimator.RatePerMinute >= 0 {
		out.RatePerMinute = c.Estimator.RatePerMinute
	}
	out.Tiers = c.Estimator.Tiers
	return out
}

// TokenTTL is the lifetime of issued API tokens.
func (c *Config) TokenTTL() time.Duration {
	if c.Auth.TokenTTLMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

// CacheTTL is how long a cached pace profile lives in Redis.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}
