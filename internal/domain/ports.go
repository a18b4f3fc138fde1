package domain

import (
	"context"
	"time"
)

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
// Enqueue, вызванный внутри транзакции, фиксируется вместе с ней.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
// Записи адресуются парой (операция, ключ).
type IdempotencyRepository interface {
	// CreateProcessing занимает ключ. Если ключ уже занят, возвращает существующую
	// запись вместе с ErrIdempotencyKeyAlreadyExists или ErrIdempotencyHashMismatch.
	CreateProcessing(ctx context.Context, scope IdempotencyScope, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, scope IdempotencyScope) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, scope IdempotencyScope, responseBody []byte, statusCode int) error
	MarkFailed(ctx context.Context, scope IdempotencyScope, responseBody []byte, statusCode int) error
	// Delete освобождает ключ, чтобы повтор запроса выполнился заново. Отсутствующий ключ не ошибка.
	Delete(ctx context.Context, scope IdempotencyScope) error
	// DeleteExpired удаляет до limit записей операции с ttl <= before; limit <= 0 снимает ограничение.
	DeleteExpired(ctx context.Context, operation string, before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
