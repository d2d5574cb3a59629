package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "notevault.yaml"

// DefaultEnvFile is the optional dotenv file merged into the process environment.
const DefaultEnvFile = ".env"

const minSecretLen = 32

// Load returns a Config using the hierarchy: defaults < YAML < .env < ENV.
// Both files are optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < .env < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	if err := loadDotEnv(DefaultEnvFile); err != nil {
		return nil, fmt.Errorf("config dotenv: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadDotEnv merges a dotenv file into the process environment.
// Variables already set in the environment are not overwritten.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "NOTEVAULT_PORT")
	setString(&cfg.Server.CORSOrigin, "NOTEVAULT_CORS_ORIGIN")
	setBool(&cfg.Server.Debug, "NOTEVAULT_DEBUG")
	setDuration(&cfg.Server.RequestTimeout, "NOTEVAULT_REQUEST_TIMEOUT")
	setInt64(&cfg.Server.BodyLimit, "NOTEVAULT_BODY_LIMIT")

	setString(&cfg.Storage.Driver, "NOTEVAULT_STORAGE")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "NOTEVAULT_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "NOTEVAULT_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "NOTEVAULT_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "NOTEVAULT_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "NOTEVAULT_PG_HEALTH_CHECK")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Stream, "NOTEVAULT_NATS_STREAM")
	setString(&cfg.NATS.IdempotencyBucket, "NOTEVAULT_IDEMPOTENCY_BUCKET")
	setDuration(&cfg.NATS.IdempotencyTTL, "NOTEVAULT_IDEMPOTENCY_TTL")
	setString(&cfg.NATS.CacheBucket, "NOTEVAULT_CACHE_BUCKET")

	setString(&cfg.Redis.URL, "REDIS_URL")

	setString(&cfg.Logging.Level, "NOTEVAULT_LOG_LEVEL")
	setString(&cfg.Logging.Service, "NOTEVAULT_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "NOTEVAULT_LOG_ASYNC")

	setFloat64(&cfg.Rate.RequestsPerSecond, "NOTEVAULT_RATE_RPS")
	setInt(&cfg.Rate.Burst, "NOTEVAULT_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "NOTEVAULT_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "NOTEVAULT_RATE_MAX_IDLE_TIME")
	setInt(&cfg.Rate.LoginAttempts, "NOTEVAULT_LOGIN_ATTEMPTS")
	setDuration(&cfg.Rate.LoginWindow, "NOTEVAULT_LOGIN_WINDOW")

	setString(&cfg.Auth.JWTSecret, "NOTEVAULT_JWT_SECRET")
	setString(&cfg.Auth.Issuer, "NOTEVAULT_JWT_ISSUER")
	setString(&cfg.Auth.Audience, "NOTEVAULT_JWT_AUDIENCE")
	setDuration(&cfg.Auth.TokenTTL, "NOTEVAULT_TOKEN_TTL")
	setInt(&cfg.Auth.BcryptCost, "NOTEVAULT_BCRYPT_COST")
	setInt(&cfg.Auth.HashConcurrency, "NOTEVAULT_HASH_CONCURRENCY")

	setInt64(&cfg.Cache.L1MaxSizeMB, "NOTEVAULT_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.StatsTTL, "NOTEVAULT_CACHE_STATS_TTL")

	setBool(&cfg.OTEL.Enabled, "NOTEVAULT_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "NOTEVAULT_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "NOTEVAULT_OTEL_SAMPLE_RATE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Storage.Driver {
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.driver must be postgres or memory, got %q", cfg.Storage.Driver)
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if len(cfg.Auth.JWTSecret) < minSecretLen {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", minSecretLen)
	}
	if cfg.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be > 0")
	}
	if cfg.Auth.BcryptCost < 4 || cfg.Auth.BcryptCost > 31 {
		return errors.New("auth.bcrypt_cost must be between 4 and 31")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Rate.LoginAttempts < 1 {
		return errors.New("rate.login_attempts must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
