// Package config loads terminal and back-office settings.
//
// Values come from defaults, an optional YAML file and POSSYNC_* environment
// variables, in increasing precedence. Nested keys map to env names with
// underscores: lease.redis_url is POSSYNC_LEASE_REDIS_URL.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/roach88/possync/internal/session"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "POSSYNC"

// Lease backends.
const (
	LeaseNone   = "none"
	LeaseSQLite = "sqlite"
	LeaseRedis  = "redis"
)

// Config holds runtime configuration.
type Config struct {
	Database      string        `mapstructure:"database" validate:"required"`
	RemoteURL     string        `mapstructure:"remote_url" validate:"omitempty,url"`
	RemoteTimeout time.Duration `mapstructure:"remote_timeout" validate:"gt=0"`
	ProbeInterval time.Duration `mapstructure:"probe_interval" validate:"gt=0"`

	// Auth
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" validate:"gt=0"`
	Token     string        `mapstructure:"token"`

	// Signed-in user
	UserID   string `mapstructure:"user_id"`
	Role     string `mapstructure:"role" validate:"omitempty,oneof=owner manager cashier"`
	StoreID  string `mapstructure:"store_id"`
	BranchID string `mapstructure:"branch_id"`

	Timezone string      `mapstructure:"timezone" validate:"required"`
	Listen   string      `mapstructure:"listen" validate:"required"`
	Lease    LeaseConfig `mapstructure:"lease"`
}

// LeaseConfig selects how terminals sharing a database arbitrate drains.
type LeaseConfig struct {
	Backend  string        `mapstructure:"backend" validate:"oneof=none sqlite redis"`
	RedisURL string        `mapstructure:"redis_url" validate:"required_if=Backend redis"`
	Key      string        `mapstructure:"key" validate:"required"`
	TTL      time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

var defaults = map[string]any{
	"database":        "possync.db",
	"remote_url":      "",
	"remote_timeout":  10 * time.Second,
	"probe_interval":  15 * time.Second,
	"jwt_secret":      "",
	"token_ttl":       12 * time.Hour,
	"token":           "",
	"user_id":         "",
	"role":            "",
	"store_id":        "",
	"branch_id":       "",
	"timezone":        "Asia/Jakarta",
	"listen":          ":8080",
	"lease.backend":   LeaseNone,
	"lease.redis_url": "",
	"lease.key":       "possync:drain",
	"lease.ttl":       30 * time.Second,
}

// Load reads configuration. An empty path looks for possync.yaml in the
// working directory and tolerates its absence; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("possync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that the timezone exists.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone: %w", err)
	}
	return nil
}

// Location returns the store's timezone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Session returns the configured user, validated.
func (c *Config) Session() (session.Context, error) {
	s := session.Context{
		UserID:   c.UserID,
		Role:     session.Role(c.Role),
		StoreID:  c.StoreID,
		BranchID: c.BranchID,
	}
	if err := s.Validate(); err != nil {
		return session.Context{}, fmt.Errorf("config: %w", err)
	}
	return s, nil
}
