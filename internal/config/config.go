package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"Startt Voice Studio"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Host         string `envconfig:"DB_HOST" default:"localhost"`
		Port         int    `envconfig:"DB_PORT" default:"5432"`
		User         string `envconfig:"DB_USER" default:"postgres"`
		Password     string `envconfig:"DB_PASSWORD" default:""`
		Name         string `envconfig:"DB_NAME" default:"voicestudio"`
		MaxOpenConns int    `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
		AutoMigrate  bool   `envconfig:"DB_AUTO_MIGRATE" default:"true"`
	}

	Server struct {
		Timeout     time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
		CORSOrigins []string      `envconfig:"CORS_ORIGINS" default:"*"`
	}

	Auth struct {
		JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
		JWTIssuer string `envconfig:"JWT_ISSUER" default:"voicestudio"`
	}

	// Redis carries the change feed. Empty URL means events are only logged.
	Redis struct {
		URL     string `envconfig:"REDIS_URL"`
		Channel string `envconfig:"REDIS_CHANNEL" default:"voicestudio.events"`
	}

	Credits struct {
		// DefaultValidityDays applies to grants that carry no explicit expiry.
		// Zero means purchased credits never expire.
		DefaultValidityDays int `envconfig:"CREDITS_DEFAULT_VALIDITY_DAYS" default:"0"`
	}

	Import struct {
		// TimeZone is the zone gateway exports write their dates in.
		TimeZone string `envconfig:"IMPORT_TIMEZONE" default:"America/Sao_Paulo"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

// DefaultValidity returns the grant validity window, zero when credits never expire.
func (c *Config) DefaultValidity() time.Duration {
	return time.Duration(c.Credits.DefaultValidityDays) * 24 * time.Hour
}

// ImportLocation resolves Import.TimeZone.
func (c *Config) ImportLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Import.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("loading import time zone: %w", err)
	}

	return loc, nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
