package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// IdempotencyRepository хранит ключи в map по паре (операция, ключ).
// Просроченные записи остаются до DeleteExpired, как и в PostgreSQL.
type IdempotencyRepository struct {
	mu    sync.RWMutex
	items map[domain.IdempotencyScope]domain.IdempotencyRecord
	now   func() time.Time
}

// NewIdempotencyRepository создаёт in-memory реализацию IdempotencyRepository.
func NewIdempotencyRepository() *IdempotencyRepository {
	return &IdempotencyRepository{
		items: make(map[domain.IdempotencyScope]domain.IdempotencyRecord),
		now:   time.Now,
	}
}

func (r *IdempotencyRepository) CreateProcessing(ctx context.Context, scope domain.IdempotencyScope, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.IdempotencyRecord{}, err
	}
	record, err := domain.NewIdempotencyRecord(scope, requestHash, ttlAt, r.now())
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.items[record.Scope]; ok {
		return cloneIdempotencyRecord(existing), existing.Conflict(record.RequestHash)
	}
	r.items[record.Scope] = cloneIdempotencyRecord(record)
	return record, nil
}

func (r *IdempotencyRepository) Get(ctx context.Context, scope domain.IdempotencyScope) (domain.IdempotencyRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.IdempotencyRecord{}, err
	}
	scope, err := domain.NewIdempotencyScope(scope.Operation, scope.Key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.items[scope]
	if !ok {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	return cloneIdempotencyRecord(record), nil
}

func (r *IdempotencyRepository) MarkDone(ctx context.Context, scope domain.IdempotencyScope, responseBody []byte, statusCode int) error {
	return r.finish(ctx, scope, domain.IdempotencyStatusDone, responseBody, statusCode)
}

func (r *IdempotencyRepository) MarkFailed(ctx context.Context, scope domain.IdempotencyScope, responseBody []byte, statusCode int) error {
	return r.finish(ctx, scope, domain.IdempotencyStatusFailed, responseBody, statusCode)
}

func (r *IdempotencyRepository) Delete(ctx context.Context, scope domain.IdempotencyScope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	scope, err := domain.NewIdempotencyScope(scope.Operation, scope.Key)
	if err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.items, scope)
	r.mu.Unlock()
	return nil
}

func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, operation string, before time.Time, limit int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := domain.ValidateIdempotentOperation(operation); err != nil {
		return 0, err
	}
	if before.IsZero() {
		before = r.now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for scope, record := range r.items {
		if scope.Operation != operation || !record.Expired(before) {
			continue
		}
		delete(r.items, scope)
		removed++
		if limit > 0 && removed >= limit {
			break
		}
	}
	return removed, nil
}

func (r *IdempotencyRepository) finish(ctx context.Context, scope domain.IdempotencyScope, status domain.IdempotencyStatus, responseBody []byte, statusCode int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	scope, err := domain.NewIdempotencyScope(scope.Operation, scope.Key)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.items[scope]
	if !ok {
		return domain.ErrIdempotencyKeyNotFound
	}
	record.Status = status
	record.ResponseBody = append([]byte(nil), responseBody...)
	record.StatusCode = statusCode
	record.UpdatedAt = r.now().UTC()
	r.items[scope] = record
	return nil
}

func cloneIdempotencyRecord(src domain.IdempotencyRecord) domain.IdempotencyRecord {
	dst := src
	dst.ResponseBody = append([]byte(nil), src.ResponseBody...)
	return dst
}

var _ domain.IdempotencyRepository = (*IdempotencyRepository)(nil)
