package app

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	AppEnv   string `validate:"required,oneof=development test staging production"`
	HTTPAddr string `validate:"required"`
	DBDSN    string `validate:"required,pgdsn"`
	LogMode  string `validate:"required,oneof=dev prod"`

	DBMaxOpenConns    int  `validate:"gte=1"`
	DBMaxIdleConns    int  `validate:"gte=1"`
	DBConnMaxLifeMins int  `validate:"gte=1"`
	DBBootstrapSchema bool

	WriteRateLimitPerMin int `validate:"gte=1"`
	ShutdownSeconds      int `validate:"gte=1,lte=300"`
}

func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownSeconds) * time.Second
}

func (c Config) DBConnMaxLifetime() time.Duration {
	return time.Duration(c.DBConnMaxLifeMins) * time.Minute
}

var configValidator = newConfigValidator()

// newConfigValidator registers pgdsn, which accepts anything pgx can parse: URLs and
// keyword/value strings alike.
func newConfigValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("pgdsn", func(fl validator.FieldLevel) bool {
		_, err := pgx.ParseConfig(fl.Field().String())
		return err == nil
	})
	return v
}

// LoadConfig reads an optional env file (ENV_FILE, default .env) and then the process
// environment. Variables already set in the environment win over the file.
func LoadConfig() (Config, error) {
	envFile := envOrDefault("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	appEnv := strings.ToLower(envOrDefault("APP_ENV", "development"))
	logMode := "dev"
	if appEnv == "production" {
		logMode = "prod"
	}

	cfg := Config{
		AppEnv:               appEnv,
		HTTPAddr:             envOrDefault("HTTP_ADDR", ":3000"),
		DBDSN:                envOrDefault("DB_DSN", dsnFromParts()),
		LogMode:              strings.ToLower(envOrDefault("LOG_MODE", logMode)),
		DBMaxOpenConns:       intOrDefault("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:       intOrDefault("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifeMins:    intOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
		DBBootstrapSchema:    boolOrDefault("DB_BOOTSTRAP_SCHEMA", true),
		WriteRateLimitPerMin: intOrDefault("WRITE_RATE_LIMIT_PER_MINUTE", 120),
		ShutdownSeconds:      intOrDefault("HTTP_SHUTDOWN_SECONDS", 10),
	}
	if err := configValidator.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// dsnFromParts builds a postgres URL from the discrete DB_* and POSTGRES_* variables.
func dsnFromParts() string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(envOrDefault("DB_HOST", "localhost"), envOrDefault("DB_PORT", "5432")),
		User:     url.UserPassword(envOrDefault("POSTGRES_USER", "postgres"), os.Getenv("POSTGRES_PASSWORD")),
		Path:     "/" + envOrDefault("POSTGRES_DB", "exames"),
		RawQuery: "sslmode=" + envOrDefault("DB_SSLMODE", "disable"),
	}
	return u.String()
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func stringsToInt(v string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(v))
	return n
}

func intOrDefault(key string, fallback int) int {
	v := stringsToInt(os.Getenv(key))
	if v <= 0 {
		return fallback
	}
	return v
}

func boolOrDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
