package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultIdempotencyTTL: сколько живёт ключ, если срок не задан явно.
const DefaultIdempotencyTTL = 24 * time.Hour

// Мутирующие операции витрины, принимающие idempotency-key.
const (
	IdempotentRegisterCustomer = "RegisterCustomer"
	IdempotentCreateProduct    = "CreateProduct"
	IdempotentPlaceOrder       = "PlaceOrder"
)

// IdempotentOperations возвращает операции, чьи ключи хранятся и вычищаются по TTL.
func IdempotentOperations() []string {
	return []string{IdempotentRegisterCustomer, IdempotentCreateProduct, IdempotentPlaceOrder}
}

// IdempotencyStatus описывает жизненный цикл ключа идемпотентности.
type IdempotencyStatus string

const (
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	IdempotencyStatusDone       IdempotencyStatus = "done"
	// IdempotencyStatusFailed: запрос завершился бизнес-отказом, повтор вернёт тот же отказ.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}

// IdempotencyScope: ключ клиента в пределах одной операции.
// Один и тот же ключ в RegisterCustomer и PlaceOrder даёт две независимые записи.
type IdempotencyScope struct {
	Operation string
	Key       string
}

// NewIdempotencyScope нормализует ключ и проверяет, что операция принимает ключи.
func NewIdempotencyScope(operation, key string) (IdempotencyScope, error) {
	scope := IdempotencyScope{Operation: strings.TrimSpace(operation), Key: strings.TrimSpace(key)}
	return scope, scope.Validate()
}

func (s IdempotencyScope) Validate() error {
	if s.Key == "" {
		return ErrIdempotencyKeyRequired
	}
	return ValidateIdempotentOperation(s.Operation)
}

func (s IdempotencyScope) String() string {
	return s.Operation + ":" + s.Key
}

// ValidateIdempotentOperation отклоняет операции, не входящие в IdempotentOperations.
func ValidateIdempotentOperation(operation string) error {
	for _, op := range IdempotentOperations() {
		if op == operation {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrIdempotencyOperationUnknown, operation)
}

// IdempotencyRecord хранит состояние обработки запроса с idempotency-key.
type IdempotencyRecord struct {
	Scope        IdempotencyScope
	RequestHash  string
	ResponseBody []byte
	// StatusCode: gRPC-код сохранённого ответа.
	StatusCode int
	Status     IdempotencyStatus
	TTLAt      time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewIdempotencyRecord готовит запись в статусе processing для CreateProcessing.
// Нулевой ttlAt заменяется на now + DefaultIdempotencyTTL.
func NewIdempotencyRecord(scope IdempotencyScope, requestHash string, ttlAt, now time.Time) (IdempotencyRecord, error) {
	scope.Operation = strings.TrimSpace(scope.Operation)
	scope.Key = strings.TrimSpace(scope.Key)
	if err := scope.Validate(); err != nil {
		return IdempotencyRecord{}, err
	}
	requestHash = strings.TrimSpace(requestHash)
	if requestHash == "" {
		return IdempotencyRecord{}, ErrIdempotencyRequestHashRequired
	}

	now = now.UTC()
	if ttlAt.IsZero() {
		ttlAt = now.Add(DefaultIdempotencyTTL)
	}
	return IdempotencyRecord{
		Scope:       scope,
		RequestHash: requestHash,
		Status:      IdempotencyStatusProcessing,
		TTLAt:       ttlAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Expired сообщает, что срок жизни записи истёк к моменту at.
func (r IdempotencyRecord) Expired(at time.Time) bool {
	return !r.TTLAt.After(at)
}

// Conflict объясняет, почему повторный CreateProcessing с requestHash не занял ключ.
func (r IdempotencyRecord) Conflict(requestHash string) error {
	if r.RequestHash != strings.TrimSpace(requestHash) {
		return ErrIdempotencyHashMismatch
	}
	return ErrIdempotencyKeyAlreadyExists
}

// CacheableFailure сообщает, можно ли закрепить отказ за ключом: повтор того же
// запроса даст тот же бизнес-результат. Сбои хранилища, отмена контекста и
// неизвестные ошибки к таким не относятся, и ключ должен быть освобождён.
func CacheableFailure(err error) bool {
	return err != nil && IsBusinessError(err) && !IsStorageError(err)
}
