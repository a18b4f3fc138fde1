package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const idempotencyColumns = `operation, key, request_hash, response_body, status_code, status, ttl_at, created_at, updated_at`

type idempotencyRepository struct {
	store *Store
}

// NewIdempotencyRepository создаёт PostgreSQL-реализацию IdempotencyRepository.
func NewIdempotencyRepository(store *Store) domain.IdempotencyRepository {
	return &idempotencyRepository{store: store}
}

// CreateProcessing вставляет запись через ON CONFLICT DO NOTHING: занятый ключ не
// порождает ошибку 23505 и не ломает транзакцию, в которой может выполняться вызов.
func (r *idempotencyRepository) CreateProcessing(ctx context.Context, scope domain.IdempotencyScope, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	record, err := domain.NewIdempotencyRecord(scope, requestHash, ttlAt, time.Now())
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var inserted string
	err = r.store.conn(ctx).QueryRowContext(ctx, `
		INSERT INTO idempotency_keys (operation, key, request_hash, status, ttl_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$6)
		ON CONFLICT (operation, key) DO NOTHING
		RETURNING key
	`,
		record.Scope.Operation,
		record.Scope.Key,
		record.RequestHash,
		string(record.Status),
		record.TTLAt,
		record.CreatedAt,
	).Scan(&inserted)
	switch {
	case err == nil:
		return record, nil
	case !errors.Is(err, sql.ErrNoRows):
		return domain.IdempotencyRecord{}, fmt.Errorf("create idempotency record %s: %w", record.Scope, err)
	}

	existing, err := r.Get(ctx, record.Scope)
	if err != nil {
		// Ключ успели удалить между INSERT и SELECT: для клиента он всё ещё занят.
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyAlreadyExists
	}
	return existing, existing.Conflict(record.RequestHash)
}

func (r *idempotencyRepository) Get(ctx context.Context, scope domain.IdempotencyScope) (domain.IdempotencyRecord, error) {
	scope, err := domain.NewIdempotencyScope(scope.Operation, scope.Key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	record, err := scanIdempotencyRecord(r.store.conn(ctx).QueryRowContext(ctx, `
		SELECT `+idempotencyColumns+`
		FROM idempotency_keys
		WHERE operation = $1 AND key = $2
	`, scope.Operation, scope.Key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
		}
		return domain.IdempotencyRecord{}, fmt.Errorf("get idempotency record %s: %w", scope, err)
	}
	return record, nil
}

func (r *idempotencyRepository) MarkDone(ctx context.Context, scope domain.IdempotencyScope, responseBody []byte, statusCode int) error {
	return r.finish(ctx, scope, domain.IdempotencyStatusDone, responseBody, statusCode)
}

func (r *idempotencyRepository) MarkFailed(ctx context.Context, scope domain.IdempotencyScope, responseBody []byte, statusCode int) error {
	return r.finish(ctx, scope, domain.IdempotencyStatusFailed, responseBody, statusCode)
}

func (r *idempotencyRepository) Delete(ctx context.Context, scope domain.IdempotencyScope) error {
	scope, err := domain.NewIdempotencyScope(scope.Operation, scope.Key)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.store.conn(ctx).ExecContext(ctx, `
		DELETE FROM idempotency_keys WHERE operation = $1 AND key = $2
	`, scope.Operation, scope.Key); err != nil {
		return fmt.Errorf("release idempotency key %s: %w", scope, err)
	}
	return nil
}

func (r *idempotencyRepository) DeleteExpired(ctx context.Context, operation string, before time.Time, limit int) (int, error) {
	if err := domain.ValidateIdempotentOperation(operation); err != nil {
		return 0, err
	}
	if before.IsZero() {
		before = time.Now().UTC()
	}
	// LIMIT NULL в PostgreSQL означает отсутствие ограничения.
	var batch sql.NullInt64
	if limit > 0 {
		batch = sql.NullInt64{Int64: int64(limit), Valid: true}
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.store.conn(ctx).ExecContext(ctx, `
		DELETE FROM idempotency_keys
		WHERE operation = $1 AND key IN (
			SELECT key
			FROM idempotency_keys
			WHERE operation = $1 AND ttl_at <= $2
			ORDER BY ttl_at
			LIMIT $3
		)
	`, operation, before, batch)
	if err != nil {
		return 0, fmt.Errorf("delete expired %s idempotency keys: %w", operation, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("idempotency rows affected: %w", err)
	}
	return int(affected), nil
}

// finish фиксирует итог обработки; ttl_at не продлевается.
func (r *idempotencyRepository) finish(ctx context.Context, scope domain.IdempotencyScope, status domain.IdempotencyStatus, responseBody []byte, statusCode int) error {
	scope, err := domain.NewIdempotencyScope(scope.Operation, scope.Key)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.store.conn(ctx).ExecContext(ctx, `
		UPDATE idempotency_keys
		SET response_body = $3,
		    status_code = $4,
		    status = $5,
		    updated_at = $6
		WHERE operation = $1 AND key = $2
	`, scope.Operation, scope.Key, responseBody, statusCode, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark idempotency key %s %s: %w", scope, status, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("idempotency rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrIdempotencyKeyNotFound
	}
	return nil
}

func scanIdempotencyRecord(row rowScanner) (domain.IdempotencyRecord, error) {
	var (
		record     domain.IdempotencyRecord
		status     string
		statusCode sql.NullInt64
	)
	if err := row.Scan(
		&record.Scope.Operation,
		&record.Scope.Key,
		&record.RequestHash,
		&record.ResponseBody,
		&statusCode,
		&status,
		&record.TTLAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return domain.IdempotencyRecord{}, err
	}

	record.Status = domain.IdempotencyStatus(status)
	if !record.Status.Valid() {
		return domain.IdempotencyRecord{}, fmt.Errorf("invalid idempotency status %q for %s", status, record.Scope)
	}
	if statusCode.Valid {
		record.StatusCode = int(statusCode.Int64)
	}
	return record, nil
}

var _ domain.IdempotencyRepository = (*idempotencyRepository)(nil)
