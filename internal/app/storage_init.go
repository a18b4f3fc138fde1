package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	"github.com/vladislavdragonenkov/storefront/internal/storage/redisstore"
)

// runtimeDependencies: хранилища, выбранные конфигурацией.
type runtimeDependencies struct {
	tx              domain.Transactor
	customers       domain.CustomerRepository
	products        domain.ProductRepository
	orders          domain.OrderRepository
	outboxRepo      domain.OutboxRepository
	idempotencyRepo domain.IdempotencyRepository

	storageChecker healthcheck.Checker
	redisChecker   healthcheck.Checker
	closeFn        func() error
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	var (
		deps *runtimeDependencies
		err  error
	)
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		deps = initMemoryDependencies()
	case StorageDriverPostgres:
		deps, err = initPostgresDependencies(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RedisAddr == "" {
		return deps, nil
	}
	if err := attachRedisIdempotency(ctx, deps, cfg.RedisAddr, logger); err != nil {
		_ = deps.close()
		return nil, err
	}
	return deps, nil
}

func initMemoryDependencies() *runtimeDependencies {
	return &runtimeDependencies{
		tx:              memory.NewTransactor(),
		customers:       memory.NewCustomerRepository(),
		products:        memory.NewProductRepository(),
		orders:          memory.NewOrderRepository(),
		outboxRepo:      memory.NewOutboxRepository(),
		idempotencyRepo: memory.NewIdempotencyRepository(),
		storageChecker: healthcheck.NewPingChecker("storage", func(context.Context) error {
			return nil
		}),
	}
}

func initPostgresDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("postgres storage driver requires a DSN")
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply postgres migrations: %w", err)
		}
		logger.Info("postgres schema is up to date")
	}

	return &runtimeDependencies{
		tx:              store,
		customers:       postgres.NewCustomerRepository(store),
		products:        postgres.NewProductRepository(store),
		orders:          postgres.NewOrderRepository(store),
		outboxRepo:      postgres.NewOutboxRepository(store),
		idempotencyRepo: postgres.NewIdempotencyRepository(store),
		storageChecker:  healthcheck.NewPingChecker("storage", store.Ping),
		closeFn:         store.Close,
	}, nil
}

// attachRedisIdempotency переносит idempotency-ключи в Redis; записи истекают по TTL.
func attachRedisIdempotency(ctx context.Context, deps *runtimeDependencies, addr string, logger *log.Entry) error {
	rdb, err := redisstore.Open(ctx, addr)
	if err != nil {
		return err
	}

	repo := redisstore.NewIdempotencyRepository(rdb)
	deps.idempotencyRepo = repo
	deps.redisChecker = healthcheck.NewOptionalChecker("redis", repo.Ping)

	storageClose := deps.closeFn
	deps.closeFn = func() error {
		redisErr := rdb.Close()
		if storageClose != nil {
			if err := storageClose(); err != nil {
				return err
			}
		}
		return redisErr
	}

	logger.WithField("redis_addr", addr).Info("idempotency keys are stored in redis")
	return nil
}

func (d *runtimeDependencies) close() error {
	if d == nil || d.closeFn == nil {
		return nil
	}
	return d.closeFn()
}
