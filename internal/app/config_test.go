package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"APP_ENV", "HTTP_ADDR", "DB_DSN", "LOG_MODE", "DB_HOST", "DB_PORT", "POSTGRES_USER",
		"POSTGRES_PASSWORD", "POSTGRES_DB", "DB_SSLMODE", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS",
		"DB_CONN_MAX_LIFETIME_MINUTES", "DB_BOOTSTRAP_SCHEMA", "WRITE_RATE_LIMIT_PER_MINUTE",
		"HTTP_SHUTDOWN_SECONDS",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTPAddr != ":3000" || cfg.AppEnv != "development" || cfg.LogMode != "dev" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.DBDSN != "postgres://postgres:@localhost:5432/exames?sslmode=disable" {
		t.Fatalf("unexpected dsn: %s", cfg.DBDSN)
	}
	if !cfg.DBBootstrapSchema || cfg.WriteRateLimitPerMin != 120 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ShutdownTimeout() != 10*time.Second || cfg.DBConnMaxLifetime() != 30*time.Minute {
		t.Fatalf("unexpected durations: %s %s", cfg.ShutdownTimeout(), cfg.DBConnMaxLifetime())
	}
}

func TestLoadConfigAssemblesDSN(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("POSTGRES_USER", "lab")
	t.Setenv("POSTGRES_PASSWORD", "p@ss word")
	t.Setenv("POSTGRES_DB", "catalog")
	t.Setenv("APP_ENV", "production")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBDSN != "postgres://lab:p%40ss%20word@db:6543/catalog?sslmode=disable" {
		t.Fatalf("unexpected dsn: %s", cfg.DBDSN)
	}
	if cfg.LogMode != "prod" {
		t.Fatalf("production should log in prod mode, got %s", cfg.LogMode)
	}
}

func TestLoadConfigExplicitDSNWins(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DB_HOST", "ignored")
	t.Setenv("DB_DSN", "postgres://u:p@host:5432/db?sslmode=require")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBDSN != "postgres://u:p@host:5432/db?sslmode=require" {
		t.Fatalf("unexpected dsn: %s", cfg.DBDSN)
	}
}

func TestLoadConfigAcceptsKeywordValueDSN(t *testing.T) {
	clearConfigEnv(t)
	dsn := "host=localhost port=5432 user=postgres password=secret dbname=exames sslmode=disable"
	t.Setenv("DB_DSN", dsn)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBDSN != dsn {
		t.Fatalf("unexpected dsn: %s", cfg.DBDSN)
	}
}

func TestLoadConfigRejectsUnparsableDSN(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DB_DSN", "postgres://user:pa ss@host:notaport/db")

	_, err := LoadConfig()
	if err == nil || !strings.Contains(err.Error(), "DBDSN") {
		t.Fatalf("expected DBDSN validation error, got %v", err)
	}
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	clearConfigEnv(t)
	os.Unsetenv("WRITE_RATE_LIMIT_PER_MINUTE")
	t.Cleanup(func() { os.Unsetenv("WRITE_RATE_LIMIT_PER_MINUTE") })

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("WRITE_RATE_LIMIT_PER_MINUTE=7\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.WriteRateLimitPerMin != 7 {
		t.Fatalf("expected limit from env file, got %d", cfg.WriteRateLimitPerMin)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value, field string
	}{
		{key: "APP_ENV", value: "qa", field: "AppEnv"},
		{key: "LOG_MODE", value: "verbose", field: "LogMode"},
		{key: "HTTP_SHUTDOWN_SECONDS", value: "900", field: "ShutdownSeconds"},
	}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(tc.key, tc.value)

			_, err := LoadConfig()
			if err == nil || !strings.Contains(err.Error(), tc.field) {
				t.Fatalf("expected validation error on %s, got %v", tc.field, err)
			}
		})
	}
}

func TestBoolOrDefault(t *testing.T) {
	t.Setenv("FLAG", "off")
	if boolOrDefault("FLAG", true) {
		t.Fatalf("off should parse as false")
	}
	t.Setenv("FLAG", "maybe")
	if !boolOrDefault("FLAG", true) {
		t.Fatalf("unknown values fall back")
	}
}
