// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment. All
// variables carry the SIGEPIC_ prefix.
type Config struct {
	// Addr is the address the HTTP server listens on (e.g. :8080).
	Addr string `mapstructure:"SIGEPIC_ADDR"`
	// PGDSN is the Postgres DSN.
	PGDSN string `mapstructure:"SIGEPIC_PG_DSN"`
	// JWTSecret signs access tokens. Required.
	JWTSecret string `mapstructure:"SIGEPIC_JWT_SECRET"`
	// JWTRefreshSecret signs refresh tokens. Required and must differ from JWTSecret.
	JWTRefreshSecret string `mapstructure:"SIGEPIC_JWT_REFRESH_SECRET"`
	// JWTExpiry is the access token lifetime (e.g. "168h" for a week).
	JWTExpiry string `mapstructure:"SIGEPIC_JWT_EXPIRY"`
	// JWTRefreshExpiry is the refresh token lifetime (e.g. "720h" for a month).
	JWTRefreshExpiry string `mapstructure:"SIGEPIC_JWT_REFRESH_EXPIRY"`
	// MaxLoginAttempts is the consecutive-failure threshold before lockout.
	MaxLoginAttempts int `mapstructure:"SIGEPIC_MAX_LOGIN_ATTEMPTS"`
	// LockoutMinutes is the lockout window in minutes.
	LockoutMinutes int `mapstructure:"SIGEPIC_LOCKOUT_MINUTES"`
	// BcryptCost is the bcrypt cost factor (4-31); default 12.
	BcryptCost int `mapstructure:"SIGEPIC_BCRYPT_COST"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"SIGEPIC_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment via Viper. Missing .env is ignored (e.g. in CI). Env vars
// override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("SIGEPIC_ADDR", ":8080")
	v.SetDefault("SIGEPIC_PG_DSN", "")
	v.SetDefault("SIGEPIC_JWT_SECRET", "")
	v.SetDefault("SIGEPIC_JWT_REFRESH_SECRET", "")
	v.SetDefault("SIGEPIC_JWT_EXPIRY", "168h")         // 7d
	v.SetDefault("SIGEPIC_JWT_REFRESH_EXPIRY", "720h") // 30d
	v.SetDefault("SIGEPIC_MAX_LOGIN_ATTEMPTS", 3)
	v.SetDefault("SIGEPIC_LOCKOUT_MINUTES", 30)
	v.SetDefault("SIGEPIC_BCRYPT_COST", 12)
	v.SetDefault("SIGEPIC_ENV", "development")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Addr == "" {
		return nil, errors.New("config: SIGEPIC_ADDR must be set")
	}
	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return nil, errors.New("config: SIGEPIC_JWT_SECRET and SIGEPIC_JWT_REFRESH_SECRET must be set")
	}
	if cfg.JWTSecret == cfg.JWTRefreshSecret {
		return nil, errors.New("config: access and refresh secrets must differ")
	}
	if cfg.MaxLoginAttempts < 1 {
		return nil, errors.New("config: SIGEPIC_MAX_LOGIN_ATTEMPTS must be at least 1")
	}
	if cfg.LockoutMinutes < 1 {
		return nil, errors.New("config: SIGEPIC_LOCKOUT_MINUTES must be at least 1")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: SIGEPIC_BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// AccessTTL parses JWTExpiry as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTExpiry)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// RefreshTTL parses JWTRefreshExpiry as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshExpiry)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// LockoutWindow returns the lockout duration.
func (c *Config) LockoutWindow() time.Duration {
	return time.Duration(c.LockoutMinutes) * time.Minute
}
