// Package config defines environment configuration structs and loaders.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-envconfig"
)

type AppConfig struct {
	RandomEnvConfig
	FetchEnvConfig
	CacheEnvConfig
	Environment string `env:"ENVIRONMENT, default=prod"`
	LogLevel    string `env:"LOG_LEVEL"`
}

// RandomEnvConfig controls the shared random source.
type RandomEnvConfig struct {
	// Seed of 0 seeds from the clock.
	Seed                uint64 `env:"SOCIALCHOICE_SEED, default=0"`
	MaxResampleAttempts int    `env:"MAX_RESAMPLE_ATTEMPTS, default=1000"`
}

// FetchEnvConfig configures downloads of remote ballot files.
type FetchEnvConfig struct {
	FetchTimeout   time.Duration `env:"FETCH_TIMEOUT, default=30s"`
	FetchRetryMax  int           `env:"FETCH_RETRY_MAX, default=3"`
	FetchRetryWait time.Duration `env:"FETCH_RETRY_WAIT, default=500ms"`
}

// CacheEnvConfig configures the optional Redis cache of downloaded ballot
// files.
type CacheEnvConfig struct {
	CacheEnabled  bool          `env:"CACHE_ENABLED, default=false"`
	CacheTTL      time.Duration `env:"CACHE_TTL, default=24h"`
	RedisHost     string        `env:"REDIS_HOST, default=127.0.0.1"`
	RedisPort     int           `env:"REDIS_PORT, default=6379"`
	RedisUsername string        `env:"REDIS_USERNAME"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB, default=0"`
}

// LoadConfig reads a .env file when one exists and then the process
// environment.
func LoadConfig(ctx context.Context) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
		log.Trace().Msg("no .env file found, using process environment")
	}
	return loadConfig(ctx, envconfig.OsLookuper())
}

func loadConfig(ctx context.Context, lookuper envconfig.Lookuper) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	return cfg, nil
}
