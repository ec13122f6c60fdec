// Package config provides application configuration loading from environment variables and .env files.
// It uses viper for flexible configuration management with sensible defaults.
package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration loaded from environment variables or .env file.
// Configuration priority: environment variables > .env file > defaults.
type Config struct {
	AppEnv      string // Application environment (dev, staging, prod)
	Host        string // HTTP server bind host
	Port        string // HTTP server bind port
	DatabaseURL string // PostgreSQL connection string
	RedisURL    string // Redis connection string, for the snapshot cache
	NATSURL     string // NATS connection string, for the cross-process change bus
	IDPDomain   string // External identity provider base URL; doubles as the expected JWT issuer and JWKS host
	LogLevel    string // Structured logging level (debug, info, warn, error)
	StoreType   string // Storage backend type (postgres or memory)
	MetricsAddr string // Metrics/pprof server bind address
}

const defaultStoreType = "postgres"

// HTTPAddr returns the host:port pair NewServer binds to.
func (c *Config) HTTPAddr() string {
	return c.Host + ":" + c.Port
}

// JWKSURL returns the well-known JWKS endpoint under IDPDomain.
func (c *Config) JWKSURL() string {
	return strings.TrimRight(c.IDPDomain, "/") + "/.well-known/jwks.json"
}

// Load reads configuration from environment variables and .env file (if present).
// Environment variables take precedence over .env file values.
//
// Validation:
//
//	Load returns an error when HOST or PORT is empty, STORE_TYPE is not
//	postgres or memory, DATABASE_URL is empty with STORE_TYPE=postgres,
//	IDP_DOMAIN is empty, or LOG_LEVEL is not debug, info, warn or error.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env") // Optional; silently ignored if file doesn't exist
	_ = v.ReadInConfig()    // Ignore error - .env is optional
	v.AutomaticEnv()        // Read from environment variables

	setConfigDefaults(v)

	cfg := &Config{
		AppEnv:      strings.TrimSpace(v.GetString("APP_ENV")),
		Host:        strings.TrimSpace(v.GetString("HOST")),
		Port:        strings.TrimSpace(v.GetString("PORT")),
		DatabaseURL: strings.TrimSpace(v.GetString("DATABASE_URL")),
		RedisURL:    strings.TrimSpace(v.GetString("REDIS_URL")),
		NATSURL:     strings.TrimSpace(v.GetString("NATS_URL")),
		IDPDomain:   strings.TrimSpace(v.GetString("IDP_DOMAIN")),
		LogLevel:    strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		StoreType:   strings.ToLower(strings.TrimSpace(v.GetString("STORE_TYPE"))),
		MetricsAddr: strings.TrimSpace(v.GetString("METRICS_ADDR")),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	warnOnUnsafeDefaults(cfg)

	return cfg, nil
}

// setConfigDefaults sets default values for all configuration options.
// These defaults are suitable for local development but should be overridden in production.
func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "redis://127.0.0.1:6379")
	v.SetDefault("NATS_URL", "nats://127.0.0.1:4222")
	v.SetDefault("IDP_DOMAIN", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_TYPE", defaultStoreType)
	v.SetDefault("METRICS_ADDR", ":9090")
}

func validateConfig(cfg *Config) error {
	if cfg.Host == "" {
		return fmt.Errorf("HOST must not be empty")
	}
	if cfg.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	switch cfg.StoreType {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported STORE_TYPE %q (expected postgres or memory)", cfg.StoreType)
	}
	if cfg.StoreType == "postgres" && cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set when STORE_TYPE=postgres")
	}
	if cfg.IDPDomain == "" {
		return fmt.Errorf("IDP_DOMAIN must be set: it is both the expected JWT issuer and the JWKS host")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported LOG_LEVEL %q (expected debug, info, warn, or error)", cfg.LogLevel)
	}
	return nil
}

func warnOnUnsafeDefaults(cfg *Config) {
	if strings.EqualFold(cfg.AppEnv, "prod") && cfg.StoreType == "memory" {
		log.Printf("WARNING: APP_ENV=prod with STORE_TYPE=memory. State will not survive a restart.")
	}
}
