package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const keyPrefix = "storefront:idem:"

// record: JSON-представление IdempotencyRecord в Redis.
type record struct {
	Operation    string    `json:"operation"`
	Key          string    `json:"key"`
	RequestHash  string    `json:"request_hash"`
	ResponseBody []byte    `json:"response_body,omitempty"`
	StatusCode   int       `json:"status_code"`
	Status       string    `json:"status"`
	TTLAt        time.Time `json:"ttl_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IdempotencyRepository хранит ключи идемпотентности в Redis.
// Срок жизни записи задаётся TTL ключа, поэтому чистка не нужна.
type IdempotencyRepository struct {
	rdb *redis.Client
}

// NewIdempotencyRepository создаёт Redis-реализацию IdempotencyRepository.
func NewIdempotencyRepository(rdb *redis.Client) *IdempotencyRepository {
	return &IdempotencyRepository{rdb: rdb}
}

// redisKey: storefront:idem:<операция>:<ключ клиента>.
func redisKey(scope domain.IdempotencyScope) string {
	return keyPrefix + scope.Operation + ":" + scope.Key
}

// CreateProcessing занимает ключ через SET NX с TTL до ttlAt.
func (r *IdempotencyRepository) CreateProcessing(ctx context.Context, scope domain.IdempotencyScope, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	rec, err := domain.NewIdempotencyRecord(scope, requestHash, ttlAt, time.Now())
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	ttl := time.Until(rec.TTLAt)
	if ttl < time.Second {
		ttl = time.Second
	}

	data, err := encodeRecord(rec)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	ok, err := r.rdb.SetNX(ctx, redisKey(rec.Scope), data, ttl).Result()
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("create idempotency record %s: %w", rec.Scope, err)
	}
	if !ok {
		existing, getErr := r.Get(ctx, rec.Scope)
		if getErr != nil {
			return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyAlreadyExists
		}
		return existing, existing.Conflict(rec.RequestHash)
	}

	return rec, nil
}

func (r *IdempotencyRepository) Get(ctx context.Context, scope domain.IdempotencyScope) (domain.IdempotencyRecord, error) {
	scope, err := domain.NewIdempotencyScope(scope.Operation, scope.Key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	data, err := r.rdb.Get(ctx, redisKey(scope)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
		}
		return domain.IdempotencyRecord{}, fmt.Errorf("get idempotency record %s: %w", scope, err)
	}
	return decodeRecord(data)
}

func (r *IdempotencyRepository) MarkDone(ctx context.Context, scope domain.IdempotencyScope, responseBody []byte, statusCode int) error {
	return r.markStatus(ctx, scope, domain.IdempotencyStatusDone, responseBody, statusCode)
}

func (r *IdempotencyRepository) MarkFailed(ctx context.Context, scope domain.IdempotencyScope, responseBody []byte, statusCode int) error {
	return r.markStatus(ctx, scope, domain.IdempotencyStatusFailed, responseBody, statusCode)
}

// Delete снимает ключ командой DEL.
func (r *IdempotencyRepository) Delete(ctx context.Context, scope domain.IdempotencyScope) error {
	scope, err := domain.NewIdempotencyScope(scope.Operation, scope.Key)
	if err != nil {
		return err
	}
	if err := r.rdb.Del(ctx, redisKey(scope)).Err(); err != nil {
		return fmt.Errorf("release idempotency key %s: %w", scope, err)
	}
	return nil
}

// DeleteExpired ничего не удаляет: Redis сам снимает ключи по TTL.
func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, operation string, _ time.Time, _ int) (int, error) {
	if err := domain.ValidateIdempotentOperation(operation); err != nil {
		return 0, err
	}
	return 0, ctx.Err()
}

// Ping проверяет доступность Redis для health-check.
func (r *IdempotencyRepository) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *IdempotencyRepository) markStatus(ctx context.Context, scope domain.IdempotencyScope, status domain.IdempotencyStatus, responseBody []byte, statusCode int) error {
	rec, err := r.Get(ctx, scope)
	if err != nil {
		return err
	}

	rec.Status = status
	rec.ResponseBody = append([]byte(nil), responseBody...)
	rec.StatusCode = statusCode
	rec.UpdatedAt = time.Now().UTC()

	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	// SET XX KEEPTTL: обновляем только существующий ключ, не продлевая его жизнь.
	ok, err := r.rdb.SetXX(ctx, redisKey(rec.Scope), data, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("mark idempotency key status: %w", err)
	}
	if !ok {
		return domain.ErrIdempotencyKeyNotFound
	}
	return nil
}

func encodeRecord(rec domain.IdempotencyRecord) ([]byte, error) {
	data, err := json.Marshal(record{
		Operation:    rec.Scope.Operation,
		Key:          rec.Scope.Key,
		RequestHash:  rec.RequestHash,
		ResponseBody: rec.ResponseBody,
		StatusCode:   rec.StatusCode,
		Status:       string(rec.Status),
		TTLAt:        rec.TTLAt,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode idempotency record: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (domain.IdempotencyRecord, error) {
	var raw record
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("decode idempotency record: %w", err)
	}
	status := domain.IdempotencyStatus(raw.Status)
	if !status.Valid() {
		return domain.IdempotencyRecord{}, fmt.Errorf("invalid idempotency status %q for key %s", raw.Status, raw.Key)
	}
	return domain.IdempotencyRecord{
		Scope:        domain.IdempotencyScope{Operation: raw.Operation, Key: raw.Key},
		RequestHash:  raw.RequestHash,
		ResponseBody: raw.ResponseBody,
		StatusCode:   raw.StatusCode,
		Status:       status,
		TTLAt:        raw.TTLAt,
		CreatedAt:    raw.CreatedAt,
		UpdatedAt:    raw.UpdatedAt,
	}, nil
}

var _ domain.IdempotencyRepository = (*IdempotencyRepository)(nil)
