package ordering

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Options задаёт необязательные зависимости PlacementService.
type Options struct {
	Transactor domain.Transactor
	Outbox     domain.OutboxRepository
	Metrics    *metrics.StorefrontMetrics
	Logger     *log.Entry
	Clock      func() time.Time
}

// Option настраивает PlacementService.
type Option func(*Options)

// WithTransactor задаёт границу транзакции для шагов от чтения товаров до записи события.
// Без него шаги выполняются без общей транзакции.
func WithTransactor(tx domain.Transactor) Option {
	return func(o *Options) { o.Transactor = tx }
}

// WithOutbox включает запись события order.placed.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(o *Options) { o.Outbox = outbox }
}

// WithMetrics задаёт метрики оформления.
func WithMetrics(m *metrics.StorefrontMetrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithClock подменяет источник времени.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) { o.Clock = clock }
}
