package config

import (
	"os"
	"testing"
)

func clearConfigEnv() {
	for _, key := range []string{
		"APP_ENV", "HOST", "PORT", "DATABASE_URL", "REDIS_URL", "NATS_URL",
		"IDP_DOMAIN", "LOG_LEVEL", "STORE_TYPE", "METRICS_ADDR",
	} {
		os.Unsetenv(key)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearConfigEnv()
	os.Setenv("IDP_DOMAIN", "https://idp.example.com")
	os.Setenv("STORE_TYPE", "memory")
	defer clearConfigEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppEnv != "dev" {
		t.Errorf("expected AppEnv='dev', got %q", cfg.AppEnv)
	}
	if cfg.Host != "0.0.0.0" {
		t.Errorf("expected Host='0.0.0.0', got %q", cfg.Host)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected Port='8080', got %q", cfg.Port)
	}
	if cfg.HTTPAddr() != "0.0.0.0:8080" {
		t.Errorf("expected HTTPAddr='0.0.0.0:8080', got %q", cfg.HTTPAddr())
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("expected MetricsAddr=':9090', got %q", cfg.MetricsAddr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected LogLevel='info', got %q", cfg.LogLevel)
	}
	if cfg.RedisURL != "redis://127.0.0.1:6379" {
		t.Errorf("expected default RedisURL, got %q", cfg.RedisURL)
	}
	if cfg.NATSURL != "nats://127.0.0.1:4222" {
		t.Errorf("expected default NATSURL, got %q", cfg.NATSURL)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearConfigEnv()
	os.Setenv("APP_ENV", "staging")
	os.Setenv("HOST", "127.0.0.1")
	os.Setenv("PORT", "9999")
	os.Setenv("STORE_TYPE", "memory")
	os.Setenv("IDP_DOMAIN", "https://idp.example.com/")
	os.Setenv("LOG_LEVEL", "debug")
	defer clearConfigEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppEnv != "staging" {
		t.Errorf("expected AppEnv='staging', got %q", cfg.AppEnv)
	}
	if cfg.HTTPAddr() != "127.0.0.1:9999" {
		t.Errorf("expected HTTPAddr='127.0.0.1:9999', got %q", cfg.HTTPAddr())
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected LogLevel='debug', got %q", cfg.LogLevel)
	}
	if cfg.JWKSURL() != "https://idp.example.com/.well-known/jwks.json" {
		t.Errorf("expected trimmed JWKS URL, got %q", cfg.JWKSURL())
	}
}

func TestLoad_RequiresIDPDomain(t *testing.T) {
	clearConfigEnv()
	os.Setenv("STORE_TYPE", "memory")
	defer clearConfigEnv()

	if _, err := Load(); err == nil {
		t.Fatal("expected Load to fail without IDP_DOMAIN")
	}
}

func TestLoad_PostgresRequiresDatabaseURL(t *testing.T) {
	clearConfigEnv()
	os.Setenv("IDP_DOMAIN", "https://idp.example.com")
	os.Setenv("STORE_TYPE", "postgres")
	defer clearConfigEnv()

	if _, err := Load(); err == nil {
		t.Fatal("expected Load to fail for postgres store without DATABASE_URL")
	}
}

func TestLoad_RejectsUnknownStoreType(t *testing.T) {
	clearConfigEnv()
	os.Setenv("IDP_DOMAIN", "https://idp.example.com")
	os.Setenv("STORE_TYPE", "dynamo")
	defer clearConfigEnv()

	if _, err := Load(); err == nil {
		t.Fatal("expected Load to fail for an unsupported store type")
	}
}

func TestLoad_RejectsUnknownLogLevel(t *testing.T) {
	clearConfigEnv()
	os.Setenv("IDP_DOMAIN", "https://idp.example.com")
	os.Setenv("STORE_TYPE", "memory")
	os.Setenv("LOG_LEVEL", "verbose")
	defer clearConfigEnv()

	if _, err := Load(); err == nil {
		t.Fatal("expected Load to fail for an unsupported log level")
	}
}
