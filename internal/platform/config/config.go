// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct. In development a '.env' file is loaded first through 'joho/godotenv';
real environment variables always win over the file.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (store, notifier, engines) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// # Backends

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"

	SinkLog   = "log"
	SinkRedis = "redis"
)

// # Configuration Schema

// Config holds all runtime configuration for the Kinship API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// StoreBackend selects the document store implementation.
	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Store (Redis)
	RedisURL string `env:"REDIS_URL"`

	// NotifySink selects where notifications are delivered.
	NotifySink string `env:"NOTIFY_SINK" envDefault:"log"`

	// Bearer token verification. The private key is only needed to mint tokens.
	JWTPubKeyPath  string `env:"JWT_PUBLIC_KEY_PATH,required,notEmpty"`
	JWTPrivKeyPath string `env:"JWT_PRIVATE_KEY_PATH"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`

	// Consistency tuning
	CASMaxAttempts       int           `env:"CAS_MAX_ATTEMPTS"       envDefault:"3"`
	ReadRepairGrace      time.Duration `env:"READ_REPAIR_GRACE"      envDefault:"10s"`
	MemberCountTolerance int64         `env:"MEMBER_COUNT_TOLERANCE" envDefault:"0"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// A missing .env file is normal outside development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to read .env file: %w", err)
	}

	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field rules the struct tags cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTPubKeyPath) == "" {
		return errors.New("config: JWT_PUBLIC_KEY_PATH must not be empty")
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres backend")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.NotifySink {
	case SinkLog:
	case SinkRedis:
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL is required for the redis notify sink")
		}
	default:
		return fmt.Errorf("config: unknown NOTIFY_SINK %q", c.NotifySink)
	}

	if c.CASMaxAttempts < 1 {
		return errors.New("config: CAS_MAX_ATTEMPTS must be at least 1")
	}
	if c.ReadRepairGrace < 0 || c.MemberCountTolerance < 0 {
		return errors.New("config: READ_REPAIR_GRACE and MEMBER_COUNT_TOLERANCE must not be negative")
	}

	return nil
}

// NeedsRedis reports whether any component needs a Redis connection.
func (c *Config) NeedsRedis() bool {
	return c.StoreBackend == BackendRedis || c.NotifySink == SinkRedis
}

// Origins returns the extra CORS origins configured in EXTRA_ORIGINS.
func (c *Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.ExtraOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
