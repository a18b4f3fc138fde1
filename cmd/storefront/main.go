package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const (
	envGRPCAddr                    = "STOREFRONT_GRPC_ADDR"
	envMetricsAddr                 = "STOREFRONT_METRICS_ADDR"
	envStorageDriver               = "STOREFRONT_STORAGE_DRIVER"
	envPostgresDSN                 = "STOREFRONT_POSTGRES_DSN"
	envPostgresAutoMigrate         = "STOREFRONT_POSTGRES_AUTO_MIGRATE"
	envKafkaBrokers                = "STOREFRONT_KAFKA_BROKERS"
	envRedisAddr                   = "STOREFRONT_REDIS_ADDR"
	envOutboxPollInterval          = "STOREFRONT_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize             = "STOREFRONT_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts           = "STOREFRONT_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay            = "STOREFRONT_OUTBOX_RETRY_DELAY"
	envIdempotencyCleanupInterval  = "STOREFRONT_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "STOREFRONT_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
	envLogLevel                    = "STOREFRONT_LOG_LEVEL"
	envLogFormat                   = "STOREFRONT_LOG_FORMAT"
)

type envLookup func(string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) []string {
	var warnings []string

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if v, ok := lookupTrimmed(lookup, envLogFormat); ok {
		switch strings.ToLower(v) {
		case "json":
			log.SetFormatter(&log.JSONFormatter{})
		case "text":
		default:
			warnings = append(warnings, fmt.Sprintf("%s: unsupported format %q, using text", envLogFormat, v))
		}
	}

	log.SetLevel(log.InfoLevel)
	if v, ok := lookupTrimmed(lookup, envLogLevel); ok {
		level, err := log.ParseLevel(v)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v, using info", envLogLevel, err))
		} else {
			log.SetLevel(level)
		}
	}
	return warnings
}

// readConfigFromEnv собирает конфигурацию из окружения.
// Некорректные значения не прерывают запуск: остаётся значение по умолчанию и появляется предупреждение.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string
	warn := func(key string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
	}

	if v, ok := lookupTrimmed(lookup, envGRPCAddr); ok {
		cfg.GRPCAddr = v
	}
	if v, ok := lookupTrimmed(lookup, envMetricsAddr); ok {
		cfg.MetricsAddr = v
	}
	if v, ok := lookupTrimmed(lookup, envStorageDriver); ok {
		cfg.StorageDriver = strings.ToLower(v)
	}
	if v, ok := lookupTrimmed(lookup, envPostgresDSN); ok {
		cfg.PostgresDSN = v
	}
	if v, ok := lookupTrimmed(lookup, envPostgresAutoMigrate); ok {
		if b, err := parseBool(v); err != nil {
			warn(envPostgresAutoMigrate, err)
		} else {
			cfg.PostgresAutoMigrate = b
		}
	}
	if v, ok := lookupTrimmed(lookup, envKafkaBrokers); ok {
		cfg.KafkaBrokers = v
	}
	if v, ok := lookupTrimmed(lookup, envRedisAddr); ok {
		cfg.RedisAddr = v
	}

	positive := func(v int) bool { return v > 0 }
	positiveDuration := func(v time.Duration) bool { return v > 0 }

	if v, ok := lookupTrimmed(lookup, envOutboxPollInterval); ok {
		if d, err := parseDuration(v, positiveDuration, "must be > 0"); err != nil {
			warn(envOutboxPollInterval, err)
		} else {
			cfg.OutboxPollInterval = d
		}
	}
	if v, ok := lookupTrimmed(lookup, envOutboxBatchSize); ok {
		if n, err := parseInt(v, positive, "must be > 0"); err != nil {
			warn(envOutboxBatchSize, err)
		} else {
			cfg.OutboxBatchSize = n
		}
	}
	if v, ok := lookupTrimmed(lookup, envOutboxMaxAttempts); ok {
		if n, err := parseInt(v, positive, "must be > 0"); err != nil {
			warn(envOutboxMaxAttempts, err)
		} else {
			cfg.OutboxMaxAttempts = n
		}
	}
	if v, ok := lookupTrimmed(lookup, envOutboxRetryDelay); ok {
		if d, err := parseDuration(v, func(d time.Duration) bool { return d >= 0 }, "must be >= 0"); err != nil {
			warn(envOutboxRetryDelay, err)
		} else {
			cfg.OutboxRetryDelay = d
		}
	}
	if v, ok := lookupTrimmed(lookup, envIdempotencyCleanupInterval); ok {
		if d, err := parseDuration(v, positiveDuration, "must be > 0"); err != nil {
			warn(envIdempotencyCleanupInterval, err)
		} else {
			cfg.IdempotencyCleanupInterval = d
		}
	}
	if v, ok := lookupTrimmed(lookup, envIdempotencyCleanupBatchSize); ok {
		if n, err := parseInt(v, positive, "must be > 0"); err != nil {
			warn(envIdempotencyCleanupBatchSize, err)
		} else {
			cfg.IdempotencyCleanupBatchSize = n
		}
	}

	return cfg, warnings
}

// lookupTrimmed возвращает значение без пробелов; пустое значение считается незаданным.
func lookupTrimmed(lookup envLookup, key string) (string, bool) {
	v, ok := lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "y", "yes", "on":
		return true, nil
	case "0", "f", "false", "n", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", s)
	}
}

func parseInt(s string, valid func(int) bool, msg string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	if !valid(v) {
		return 0, fmt.Errorf("value %d %s", v, msg)
	}
	return v, nil
}

func parseDuration(s string, valid func(time.Duration) bool, msg string) (time.Duration, error) {
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if !valid(v) {
		return 0, fmt.Errorf("value %s %s", v, msg)
	}
	return v, nil
}

func main() {
	warnings := setupLogger(os.LookupEnv)
	cfg, cfgWarnings := readConfigFromEnv(os.LookupEnv)
	for _, w := range append(warnings, cfgWarnings...) {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(version.Fields()).WithFields(log.Fields{
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"kafka":          cfg.KafkaBrokers != "",
		"redis":          cfg.RedisAddr != "",
	}).Info("запускаем storefront")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("storefront остановлен")
}
