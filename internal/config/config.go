package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const EnvProduction = "production"

type Config struct {
	Environment        string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	ServerAddr         string        `env:"SERVER_ADDR" envDefault:":8000"`
	DatabaseDSN        string        `env:"DATABASE_DSN"`
	AccessTokenSecret  string        `env:"ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	AllowedOrigins     []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	RedisURL           string        `env:"REDIS_URL"`
	RunMigrations      bool          `env:"RUN_MIGRATIONS" envDefault:"true"`
	AuthRateLimit      float64       `env:"AUTH_RATE_LIMIT" envDefault:"5"`
	AuthRateBurst      int           `env:"AUTH_RATE_BURST" envDefault:"10"`

	// Decoded from the base64 secrets above.
	AccessSigningKey  []byte
	RefreshSigningKey []byte
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, errors.New("empty secret")
	}
	return key, nil
}

// Load reads the configuration from the environment. Variables from
// envFiles are loaded first without overriding the real environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database DSN cannot be empty")
	}
	if c.AccessTokenSecret == "" || c.RefreshTokenSecret == "" {
		return fmt.Errorf("access and refresh token secrets cannot be empty")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return fmt.Errorf("access and refresh token secrets must differ")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		return fmt.Errorf("access token lifetime must be shorter than refresh token lifetime")
	}
	if c.AuthRateLimit <= 0 || c.AuthRateBurst <= 0 {
		return fmt.Errorf("auth rate limit and burst must be positive")
	}

	var err error
	// Decode the base64 encoded signing secrets
	if c.AccessSigningKey, err = decodeSigningSecret(c.AccessTokenSecret); err != nil {
		return fmt.Errorf("decode access token secret: %w", err)
	}
	if c.RefreshSigningKey, err = decodeSigningSecret(c.RefreshTokenSecret); err != nil {
		return fmt.Errorf("decode refresh token secret: %w", err)
	}

	return nil
}
