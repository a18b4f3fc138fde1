package metrics

import (
	"context"
	"errors"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ReasonOf сводит ошибку операции к метке reason.
func ReasonOf(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCanceled
	case errors.Is(err, domain.ErrCustomerNotFound):
		return ReasonCustomerNotFound
	case errors.Is(err, domain.ErrProductNotFound):
		return ReasonProductNotFound
	case errors.Is(err, domain.ErrInsufficientQuantity):
		return ReasonInsufficientQuantity
	case errors.Is(err, domain.ErrDuplicateEmail):
		return ReasonDuplicateEmail
	case errors.Is(err, domain.ErrDuplicateProductName):
		return ReasonDuplicateProductName
	case domain.IsValidationError(err):
		return ReasonValidation
	default:
		return ReasonStorage
	}
}
