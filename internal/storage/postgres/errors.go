package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// Имена CHECK-ограничений из 0001_catalog.up.sql.
const (
	constraintProductPrice    = "products_price_non_negative"
	constraintProductQuantity = "products_quantity_non_negative"
)

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == pgUniqueViolation
}

func isCheckViolation(err error) bool {
	return pgErrorCode(err) == pgCheckViolation
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func pgConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// productCheckError переводит нарушение CHECK таблицы products в доменную ошибку.
// Для неизвестного ограничения возвращает nil.
func productCheckError(err error) error {
	if !isCheckViolation(err) {
		return nil
	}
	switch pgConstraintName(err) {
	case constraintProductPrice:
		return domain.ErrItemPriceInvalid
	case constraintProductQuantity:
		return domain.ErrProductQtyNegative
	}
	return nil
}
