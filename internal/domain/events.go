package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Типы агрегатов, для которых пишутся события в outbox.
const (
	AggregateCustomer = "customer"
	AggregateOrder    = "order"
)

// Типы событий outbox.
const (
	EventCustomerRegistered = "customer.registered"
	EventOrderPlaced        = "order.placed"
)

// CustomerRegisteredPayload: тело события регистрации клиента.
type CustomerRegisteredPayload struct {
	CustomerID   string    `json:"customer_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
}

// OrderPlacedItem: позиция в событии оформления заказа.
type OrderPlacedItem struct {
	ProductID  string `json:"product_id"`
	Qty        int64  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
}

// OrderPlacedPayload: тело события оформления заказа.
type OrderPlacedPayload struct {
	OrderID     string            `json:"order_id"`
	CustomerID  string            `json:"customer_id"`
	AmountMinor int64             `json:"amount_minor"`
	Items       []OrderPlacedItem `json:"items"`
	PlacedAt    time.Time         `json:"placed_at"`
}

// NewCustomerRegisteredMessage собирает outbox-сообщение о регистрации клиента.
func NewCustomerRegisteredMessage(c Customer) (OutboxMessage, error) {
	payload, err := json.Marshal(CustomerRegisteredPayload{
		CustomerID:   c.ID,
		Name:         c.Name,
		Email:        c.Email,
		RegisteredAt: c.CreatedAt,
	})
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal customer registered payload: %w", err)
	}
	return OutboxMessage{
		AggregateType: AggregateCustomer,
		AggregateID:   c.ID,
		EventType:     EventCustomerRegistered,
		Payload:       payload,
	}, nil
}

// NewOrderPlacedMessage собирает outbox-сообщение об оформленном заказе.
func NewOrderPlacedMessage(o Order) (OutboxMessage, error) {
	items := make([]OrderPlacedItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderPlacedItem{
			ProductID:  item.ProductID,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
		})
	}
	payload, err := json.Marshal(OrderPlacedPayload{
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		AmountMinor: o.AmountMinor,
		Items:       items,
		PlacedAt:    o.CreatedAt,
	})
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal order placed payload: %w", err)
	}
	return OutboxMessage{
		AggregateType: AggregateOrder,
		AggregateID:   o.ID,
		EventType:     EventOrderPlaced,
		Payload:       payload,
	}, nil
}
