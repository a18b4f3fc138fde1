// Package idempotency вычищает просроченные ключи идемпотентности мутирующих RPC витрины.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultCleanupInterval  = 10 * time.Minute
	defaultCleanupBatchSize = 500
	// defaultMaxBatches ограничивает один проход по операции, чтобы поток новых
	// просроченных ключей не держал воркер в цикле. Остаток уйдёт в следующий тик.
	defaultMaxBatches = 100
)

var (
	cleanupRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_idempotency_cleanup_runs_total",
		Help: "Idempotency cleanup runs grouped by result.",
	}, []string{"result"})
	cleanupDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_idempotency_cleanup_deleted_total",
		Help: "Expired idempotency keys deleted, per storefront operation.",
	}, []string{"operation"})
	cleanupLastDeleted = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "storefront_idempotency_cleanup_last_deleted",
		Help: "Keys deleted during the last cleanup run, per storefront operation.",
	}, []string{"operation"})
	cleanupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_idempotency_cleanup_duration_seconds",
		Help:    "Duration of a single idempotency cleanup run.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	})
)

// CleanupOptions задает параметры воркера очистки.
type CleanupOptions struct {
	Logger     *log.Entry
	Interval   time.Duration
	BatchSize  int
	MaxBatches int
	Operations []string
}

// CleanupOption настраивает CleanupWorker.
type CleanupOption func(*CleanupOptions)

func WithLogger(logger *log.Entry) CleanupOption {
	return func(opts *CleanupOptions) { opts.Logger = logger }
}

func WithInterval(interval time.Duration) CleanupOption {
	return func(opts *CleanupOptions) { opts.Interval = interval }
}

func WithBatchSize(batchSize int) CleanupOption {
	return func(opts *CleanupOptions) { opts.BatchSize = batchSize }
}

// WithMaxBatches задает предел batch-удалений на одну операцию за проход.
func WithMaxBatches(n int) CleanupOption {
	return func(opts *CleanupOptions) { opts.MaxBatches = n }
}

// WithOperations сужает очистку до перечисленных операций.
func WithOperations(operations ...string) CleanupOption {
	return func(opts *CleanupOptions) { opts.Operations = operations }
}

// SweepResult: сколько ключей удалено по каждой операции.
type SweepResult map[string]int

// Total возвращает общее число удалённых ключей.
func (r SweepResult) Total() int {
	total := 0
	for _, n := range r {
		total += n
	}
	return total
}

// CleanupWorker периодически удаляет просроченные ключи идемпотентности
// RegisterCustomer, CreateProduct и PlaceOrder. Для Redis ключи истекают по TTL,
// и репозиторий сообщает 0 удалённых.
type CleanupWorker struct {
	repo       domain.IdempotencyRepository
	logger     *log.Entry
	interval   time.Duration
	batchSize  int
	maxBatches int
	operations []string
}

// NewCleanupWorker создает воркер очистки. Операции из WithOperations, которые не
// принимают idempotency-key, отбрасываются: их ключи не создаются.
func NewCleanupWorker(repo domain.IdempotencyRepository, options ...CleanupOption) *CleanupWorker {
	opts := CleanupOptions{
		Interval:   defaultCleanupInterval,
		BatchSize:  defaultCleanupBatchSize,
		MaxBatches: defaultMaxBatches,
		Operations: domain.IdempotentOperations(),
	}
	for _, option := range options {
		option(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "idempotency-cleanup-worker")
	}
	operations := make([]string, 0, len(opts.Operations))
	for _, op := range opts.Operations {
		if err := domain.ValidateIdempotentOperation(op); err != nil {
			opts.Logger.WithError(err).Warn("skipping idempotency cleanup for operation")
			continue
		}
		operations = append(operations, op)
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultCleanupInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultCleanupBatchSize
	}
	if opts.MaxBatches <= 0 {
		opts.MaxBatches = defaultMaxBatches
	}

	return &CleanupWorker{
		repo:       repo,
		logger:     opts.Logger,
		interval:   opts.Interval,
		batchSize:  opts.BatchSize,
		maxBatches: opts.MaxBatches,
		operations: operations,
	}
}

// Run запускает периодическую очистку до отмены ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("idempotency cleanup worker is disabled: repo is nil")
		return
	}

	w.runOnce(ctx, time.Now().UTC())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx, time.Now().UTC())
		}
	}
}

func (w *CleanupWorker) runOnce(ctx context.Context, before time.Time) {
	started := time.Now()
	result, err := w.Sweep(ctx, before)
	cleanupDuration.Observe(time.Since(started).Seconds())

	for op, n := range result {
		cleanupLastDeleted.WithLabelValues(op).Set(float64(n))
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		cleanupRunsTotal.WithLabelValues("error").Inc()
		w.logger.WithError(err).Warn("idempotency cleanup run failed")
		return
	}

	cleanupRunsTotal.WithLabelValues("ok").Inc()
	if total := result.Total(); total > 0 {
		w.logger.WithFields(log.Fields{
			"deleted":      total,
			"by_operation": map[string]int(result),
		}).Info("idempotency cleanup completed")
	}
}

// Sweep удаляет ключи с ttl <= before по каждой операции порциями batchSize.
// Сбой одной операции не мешает остальным; ошибки объединяются.
func (w *CleanupWorker) Sweep(ctx context.Context, before time.Time) (SweepResult, error) {
	if before.IsZero() {
		before = time.Now().UTC()
	}

	result := make(SweepResult, len(w.operations))
	var errs []error
	for _, op := range w.operations {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		deleted, err := w.sweepOperation(ctx, op, before)
		result[op] = deleted
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return result, err
			}
			errs = append(errs, fmt.Errorf("%s: %w", op, err))
		}
	}
	return result, errors.Join(errs...)
}

func (w *CleanupWorker) sweepOperation(ctx context.Context, operation string, before time.Time) (int, error) {
	total := 0
	for batch := 0; batch < w.maxBatches; batch++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		deleted, err := w.repo.DeleteExpired(ctx, operation, before, w.batchSize)
		if err != nil {
			return total, err
		}
		total += deleted
		if deleted > 0 {
			cleanupDeletedTotal.WithLabelValues(operation).Add(float64(deleted))
		}
		if deleted < w.batchSize {
			return total, nil
		}
	}

	w.logger.WithFields(log.Fields{
		"operation":   operation,
		"deleted":     total,
		"max_batches": w.maxBatches,
	}).Warn("idempotency cleanup hit batch limit, the rest is left for the next run")
	return total, nil
}
