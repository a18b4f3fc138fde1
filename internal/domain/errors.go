package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего имени клиента.
	ErrCustomerNameRequired = errors.New("customer name is required")
	// Ошибка отсутствующего email.
	ErrEmailRequired = errors.New("email is required")
	// Ошибка некорректного email.
	ErrEmailInvalid = errors.New("email is invalid")
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствующего названия товара.
	ErrProductNameRequired = errors.New("product name is required")
	// Ошибка отсутствующего идентификатора товара в позиции.
	ErrProductIDRequired = errors.New("product_id is required")
	// Ошибка отрицательного остатка при создании товара.
	ErrProductQtyNegative = errors.New("product quantity must be non-negative")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("amount_minor must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции или товара отрицательная.
	ErrItemPriceInvalid = errors.New("price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")
	// Ошибка переполнения суммы заказа при умножении qty на цену.
	ErrAmountOverflow = errors.New("order amount overflows int64")

	// ErrDuplicateEmail: клиент с таким email уже зарегистрирован.
	ErrDuplicateEmail = errors.New("this email is already in use")
	// ErrCustomerNotFound: клиент не найден в справочнике.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrProductNotFound: хотя бы один из запрошенных товаров отсутствует в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientQuantity: остатка на складе не хватает для заказа.
	ErrInsufficientQuantity = errors.New("insufficient product quantity")
	// ErrDuplicateProductName: товар с таким названием уже существует.
	ErrDuplicateProductName = errors.New("product already exists")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderAlreadyExists: заказ с таким ID уже сохранён.
	ErrOrderAlreadyExists = errors.New("order already exists")

	// ErrIdempotencyKeyRequired: пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired: пустой хеш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists: ключ уже использован с тем же запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch: ключ уже использован с другим запросом.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyOperationUnknown: ключ передан для операции, которая не принимает idempotency-key.
	ErrIdempotencyOperationUnknown = errors.New("operation does not accept idempotency keys")
	// ErrIdempotencyKeyNotFound: запись по ключу не найдена.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")

	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// StorageError отделяет сбои инфраструктуры хранения от бизнес-отказов.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("storage failure: %v", e.Err)
	}
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapStorage оборачивает err в StorageError, бизнес-ошибки и ошибки контекста возвращаются как есть.
func WrapStorage(op string, err error) error {
	if err == nil || IsBusinessError(err) || IsStorageError(err) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorageError проверяет, что ошибка относится к инфраструктуре хранения.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsBusinessError сообщает, что ошибка является отказом бизнес-правил, а не сбоем.
func IsBusinessError(err error) bool {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return IsValidationError(err)
}

// IsValidationError сообщает, что ошибка вызвана некорректным входом.
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsIdempotencyConflict проверяет, что ключ идемпотентности уже занят.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}

var businessErrors = []error{
	ErrDuplicateEmail,
	ErrCustomerNotFound,
	ErrProductNotFound,
	ErrInsufficientQuantity,
	ErrDuplicateProductName,
	ErrOrderNotFound,
	ErrOrderAlreadyExists,
}

var validationErrors = []error{
	ErrCustomerNameRequired,
	ErrEmailRequired,
	ErrEmailInvalid,
	ErrCustomerRequired,
	ErrProductNameRequired,
	ErrProductIDRequired,
	ErrProductQtyNegative,
	ErrItemsRequired,
	ErrAmountNegative,
	ErrItemQtyInvalid,
	ErrItemPriceInvalid,
	ErrAmountMismatch,
	ErrAmountOverflow,
}
