package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config описывает настройки запуска сервиса.
type Config struct {
	// HTTPAddr — адрес HTTP API.
	HTTPAddr string
	// MetricsAddr — адрес служебного сервера (/metrics, /healthz, /livez, /readyz).
	MetricsAddr string

	// PostgresDSN — строка подключения PostgreSQL. Пустая строка включает
	// in-memory хранилища (разработка и тесты).
	PostgresDSN string
	// RedisAddr — адрес Redis для быстрого счётчика доступности. Опционально.
	RedisAddr string
	// KafkaBrokers — список брокеров через запятую. Опционально.
	KafkaBrokers string
	// OutboxTopic — topic публикации outbox-событий.
	OutboxTopic string

	// AutoAdvanceDelay — пауза между автоматическими логистическими переходами.
	AutoAdvanceDelay time.Duration
	// ConfirmTimeout — срок ожидания подтверждения покупателя после доставки.
	ConfirmTimeout time.Duration
	// IdempotencyTTL — время жизни записей Idempotency-Key.
	IdempotencyTTL time.Duration
}

// DefaultConfig возвращает базовые настройки сервиса.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:         ":8080",
		MetricsAddr:      ":9090",
		AutoAdvanceDelay: 15 * time.Second,
		ConfirmTimeout:   7 * 24 * time.Hour,
		IdempotencyTTL:   24 * time.Hour,
	}
}

// LoadConfig читает конфигурацию из окружения поверх значений по умолчанию.
// .env подхватывается если присутствует.
func LoadConfig() Config {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	cfg.HTTPAddr = envString("CHECKOUT_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = envString("CHECKOUT_METRICS_ADDR", cfg.MetricsAddr)
	cfg.PostgresDSN = envString("CHECKOUT_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.RedisAddr = envString("CHECKOUT_REDIS_ADDR", cfg.RedisAddr)
	cfg.KafkaBrokers = envString("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.OutboxTopic = envString("CHECKOUT_OUTBOX_TOPIC", cfg.OutboxTopic)
	cfg.AutoAdvanceDelay = envDuration("CHECKOUT_AUTO_ADVANCE_DELAY", cfg.AutoAdvanceDelay)
	cfg.ConfirmTimeout = envDuration("CHECKOUT_CONFIRM_TIMEOUT", cfg.ConfirmTimeout)
	cfg.IdempotencyTTL = envDuration("CHECKOUT_IDEMPOTENCY_TTL", cfg.IdempotencyTTL)
	return cfg
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
