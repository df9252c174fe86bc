package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/spendboard/spendboard/internal/fx"
	"github.com/spendboard/spendboard/internal/platform/cache"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"60s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisTLS      bool   `envconfig:"REDIS_TLS" default:"false"`
	// CacheTTL of zero keeps cached periods until they are cleared.
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"0s"`

	DefaultExchangeRate decimal.Decimal `envconfig:"DEFAULT_EXCHANGE_RATE" default:"1.29"`
	UploadMaxBytes      int64           `envconfig:"UPLOAD_MAX_BYTES" default:"33554432"`
	RateLimitPerMinute  int             `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if !cfg.DefaultExchangeRate.IsPositive() {
		return nil, errors.New("default exchange rate must be positive")
	}
	if cfg.UploadMaxBytes <= 0 {
		return nil, errors.New("upload max bytes must be positive")
	}
	if cfg.CacheTTL < 0 {
		return nil, errors.New("cache ttl must not be negative")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// ExchangePolicy returns the GBP->USD fallback policy.
func (c *Config) ExchangePolicy() fx.Policy {
	if c == nil {
		return fx.DefaultPolicy()
	}
	return fx.Policy{Fallback: c.DefaultExchangeRate}
}

// RedisOptions returns the connection settings for the period cache.
func (c *Config) RedisOptions() cache.Options {
	return cache.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
		TLS:      c.RedisTLS,
	}
}
