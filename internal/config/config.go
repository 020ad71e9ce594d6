package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN             string        `mapstructure:"DB_DSN"`
	Environment       string        `mapstructure:"ENV"`
	HTTPAddr          string        `mapstructure:"HTTP_ADDR"`
	TelegramToken     string        `mapstructure:"TELEGRAM_TOKEN"`
	NatsURL           string        `mapstructure:"NATS_URL"`
	RedisAddr         string        `mapstructure:"REDIS_ADDR"`
	RedisPassword     string        `mapstructure:"REDIS_PASSWORD"`
	OtelEndpoint      string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	SweepInterval     time.Duration `mapstructure:"SWEEP_INTERVAL"`
	ConflictMode      string        `mapstructure:"CONFLICT_MODE"`
	AppBaseURL        string        `mapstructure:"APP_BASE_URL"`
	OperatorProfileID string        `mapstructure:"OPERATOR_PROFILE_ID"`
	MigrationsOnStart bool          `mapstructure:"MIGRATIONS_ON_START"`
	FirstHour         int           `mapstructure:"AVAILABILITY_FIRST_HOUR"`
	LastHour          int           `mapstructure:"AVAILABILITY_LAST_HOUR"`
	InternalSecret    string        `mapstructure:"INTERNAL_SHARED_SECRET"`
	LinkCodeTTL       time.Duration `mapstructure:"LINK_CODE_TTL"`
}

// Load читает конфигурацию из .env (если есть) и переменных окружения
func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	cfg := &Config{
		DBDSN:             os.Getenv("DB_DSN"),
		Environment:       os.Getenv("ENV"),
		HTTPAddr:          os.Getenv("HTTP_ADDR"),
		TelegramToken:     os.Getenv("TELEGRAM_TOKEN"),
		NatsURL:           os.Getenv("NATS_URL"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		OtelEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ConflictMode:      strings.ToLower(os.Getenv("CONFLICT_MODE")),
		AppBaseURL:        strings.TrimRight(os.Getenv("APP_BASE_URL"), "/"),
		OperatorProfileID: os.Getenv("OPERATOR_PROFILE_ID"),
		InternalSecret:    os.Getenv("INTERNAL_SHARED_SECRET"),
	}

	// Устанавливаем дефолтные значения
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.ConflictMode == "" {
		cfg.ConflictMode = "overlap"
	}

	var err error
	if cfg.SweepInterval, err = durationEnv("SWEEP_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.LinkCodeTTL, err = durationEnv("LINK_CODE_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.MigrationsOnStart, err = boolEnv("MIGRATIONS_ON_START", true); err != nil {
		return nil, err
	}
	if cfg.FirstHour, err = intEnv("AVAILABILITY_FIRST_HOUR", 5); err != nil {
		return nil, err
	}
	if cfg.LastHour, err = intEnv("AVAILABILITY_LAST_HOUR", 23); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("Config loaded\n")

	return cfg, nil
}

// Validate проверяет обязательные поля и диапазоны
func (c *Config) Validate() error {
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is required but not set")
	}
	if c.ConflictMode != "overlap" && c.ConflictMode != "exact" {
		return fmt.Errorf("CONFLICT_MODE must be 'overlap' or 'exact', got %q", c.ConflictMode)
	}
	if c.FirstHour < 0 || c.LastHour > 23 || c.FirstHour > c.LastHour {
		return fmt.Errorf("availability hours must satisfy 0 <= first <= last <= 23, got %d..%d", c.FirstHour, c.LastHour)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("SWEEP_INTERVAL must not be negative")
	}
	if c.LinkCodeTTL <= 0 {
		return fmt.Errorf("LINK_CODE_TTL must be positive")
	}
	return nil
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func boolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}
