package domain

import (
	"fmt"
	"math"
	"time"
)

// OrderStatus описывает состояние заказа.
type OrderStatus string

const (
	// OrderStatusPlaced: заказ оформлен, товар списан со склада.
	OrderStatusPlaced OrderStatus = "placed"
)

// OrderLine: строка запроса на оформление: какой товар и сколько единиц.
type OrderLine struct {
	ProductID string
	Qty       int64
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID        string
	ProductID string
	// Qty: количество единиц товара.
	Qty int64
	// PriceMinor: цена товара на момент оформления. После создания не меняется.
	PriceMinor int64
	CreatedAt  time.Time
}

// Order агрегирует заказ и его позиции.
type Order struct {
	ID          string
	CustomerID  string
	Status      OrderStatus
	AmountMinor int64
	Items       []OrderItem
	CreatedAt   time.Time
}

// ValidateLines проверяет строки запроса до обращения к хранилищам.
func ValidateLines(lines []OrderLine) error {
	if len(lines) == 0 {
		return ErrItemsRequired
	}
	for _, line := range lines {
		if line.ProductID == "" {
			return ErrProductIDRequired
		}
		if line.Qty <= 0 {
			return ErrItemQtyInvalid
		}
	}
	return nil
}

// AggregateLines схлопывает повторяющиеся товары в одну строку с суммарным количеством.
// Порядок строк соответствует первому появлению товара в запросе.
// Если сумма по товару не помещается в int64, запрос заведомо больше любого остатка:
// возвращается ErrInsufficientQuantity, а строка этого товара получает math.MaxInt64.
func AggregateLines(lines []OrderLine) ([]OrderLine, error) {
	index := make(map[string]int, len(lines))
	result := make([]OrderLine, 0, len(lines))
	var overflowErr error
	for _, line := range lines {
		i, ok := index[line.ProductID]
		if !ok {
			index[line.ProductID] = len(result)
			result = append(result, line)
			continue
		}
		sum, ok := AddQty(result[i].Qty, line.Qty)
		if !ok {
			if overflowErr == nil {
				overflowErr = fmt.Errorf("%w: product %s requested more than %d units",
					ErrInsufficientQuantity, line.ProductID, int64(math.MaxInt64))
			}
			sum = math.MaxInt64
		}
		result[i].Qty = sum
	}
	return result, overflowErr
}

// AddQty складывает неотрицательные количества и сообщает false при переполнении.
func AddQty(a, b int64) (int64, bool) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

// LineAmount считает qty * price и сообщает false при переполнении.
// Отрицательные множители сюда не попадают: их отсекает валидация.
func LineAmount(qty, priceMinor int64) (int64, bool) {
	if qty < 0 || priceMinor < 0 {
		return 0, false
	}
	if qty != 0 && priceMinor > math.MaxInt64/qty {
		return 0, false
	}
	return qty * priceMinor, true
}

// ProductIDs возвращает идентификаторы товаров из строк в исходном порядке.
func ProductIDs(lines []OrderLine) []string {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc int64
	overflow := false
	for _, item := range o.Items {
		if item.ProductID == "" {
			errs = append(errs, ErrProductIDRequired)
		}
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		if overflow || item.Qty <= 0 || item.PriceMinor < 0 {
			continue
		}
		amount, ok := LineAmount(item.Qty, item.PriceMinor)
		if ok {
			calc, ok = AddQty(calc, amount)
		}
		if !ok {
			overflow = true
			errs = append(errs, ErrAmountOverflow)
		}
	}
	if !overflow && calc != o.AmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
