package grpcsvc

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Customer: клиент в ответах API.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Product: товар в ответах API.
type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PriceMinor int64     `json:"price_minor"`
	Quantity   int64     `json:"quantity"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// OrderLine: строка запроса на оформление.
type OrderLine struct {
	ProductID string `json:"product_id"`
	Qty       int64  `json:"qty"`
}

// OrderItem: позиция оформленного заказа.
type OrderItem struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	Qty        int64  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
}

// Order: заказ в ответах API.
type Order struct {
	ID          string      `json:"id"`
	CustomerID  string      `json:"customer_id"`
	Status      string      `json:"status"`
	AmountMinor int64       `json:"amount_minor"`
	Items       []OrderItem `json:"items"`
	CreatedAt   time.Time   `json:"created_at"`
}

type RegisterCustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type RegisterCustomerResponse struct {
	Customer Customer `json:"customer"`
}

type GetCustomerRequest struct {
	CustomerID string `json:"customer_id"`
}

type GetCustomerResponse struct {
	Customer Customer `json:"customer"`
}

type CreateProductRequest struct {
	Name       string `json:"name"`
	PriceMinor int64  `json:"price_minor"`
	Quantity   int64  `json:"quantity"`
}

type CreateProductResponse struct {
	Product Product `json:"product"`
}

type GetProductRequest struct {
	ProductID string `json:"product_id"`
}

type GetProductResponse struct {
	Product Product `json:"product"`
}

type PlaceOrderRequest struct {
	CustomerID string      `json:"customer_id"`
	Items      []OrderLine `json:"items"`
}

type PlaceOrderResponse struct {
	Order Order `json:"order"`
}

type GetOrderRequest struct {
	OrderID string `json:"order_id"`
}

type GetOrderResponse struct {
	Order Order `json:"order"`
}

type ListOrdersRequest struct {
	CustomerID string `json:"customer_id"`
	Limit      int    `json:"limit"`
}

type ListOrdersResponse struct {
	Orders []Order `json:"orders"`
}

func toCustomer(c domain.Customer) Customer {
	return Customer{ID: c.ID, Name: c.Name, Email: c.Email, CreatedAt: c.CreatedAt}
}

func toProduct(p domain.Product) Product {
	return Product{
		ID:         p.ID,
		Name:       p.Name,
		PriceMinor: p.PriceMinor,
		Quantity:   p.Quantity,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func toOrder(o domain.Order) Order {
	items := make([]OrderItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItem{
			ID:         item.ID,
			ProductID:  item.ProductID,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
		})
	}
	return Order{
		ID:          o.ID,
		CustomerID:  o.CustomerID,
		Status:      string(o.Status),
		AmountMinor: o.AmountMinor,
		Items:       items,
		CreatedAt:   o.CreatedAt,
	}
}

func toDomainLines(lines []OrderLine) []domain.OrderLine {
	result := make([]domain.OrderLine, 0, len(lines))
	for _, line := range lines {
		result = append(result, domain.OrderLine{ProductID: line.ProductID, Qty: line.Qty})
	}
	return result
}
