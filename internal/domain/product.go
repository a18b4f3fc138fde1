package domain

import (
	"strings"
	"time"
)

// Product: позиция каталога с текущей ценой и остатком.
type Product struct {
	ID string
	// Name уникален в каталоге.
	Name string
	// PriceMinor: цена за единицу в минимальных денежных единицах.
	PriceMinor int64
	// Quantity: остаток на складе, никогда не опускается ниже нуля.
	Quantity  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateNewProduct проверяет параметры создаваемого товара.
func ValidateNewProduct(name string, priceMinor, quantity int64) error {
	if strings.TrimSpace(name) == "" {
		return ErrProductNameRequired
	}
	if priceMinor < 0 {
		return ErrItemPriceInvalid
	}
	if quantity < 0 {
		return ErrProductQtyNegative
	}
	return nil
}
