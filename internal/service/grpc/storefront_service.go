// Package grpcsvc публикует сервисы витрины через gRPC.
package grpcsvc

import (
	"context"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CustomerService: регистрация и чтение клиентов.
type CustomerService interface {
	Register(ctx context.Context, name, email string) (domain.Customer, error)
	Get(ctx context.Context, id string) (domain.Customer, error)
}

// CatalogService: создание и чтение товаров.
type CatalogService interface {
	CreateProduct(ctx context.Context, name string, priceMinor, quantity int64) (domain.Product, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
}

// OrderingService: оформление и чтение заказов.
type OrderingService interface {
	PlaceOrder(ctx context.Context, customerID string, lines []domain.OrderLine) (domain.Order, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListOrders(ctx context.Context, customerID string, limit int) ([]domain.Order, error)
}

// StorefrontService реализует StorefrontServer поверх доменных сервисов.
type StorefrontService struct {
	customers CustomerService
	catalog   CatalogService
	ordering  OrderingService
	idemRepo  domain.IdempotencyRepository
	logger    *log.Entry
}

var _ StorefrontServer = (*StorefrontService)(nil)

// NewStorefrontService конструирует gRPC-сервис. idemRepo может быть nil.
func NewStorefrontService(
	customers CustomerService,
	catalog CatalogService,
	ordering OrderingService,
	idemRepo domain.IdempotencyRepository,
	logger *log.Entry,
) *StorefrontService {
	if logger == nil {
		logger = log.New().WithField("component", "grpc-storefront")
	}
	return &StorefrontService{
		customers: customers,
		catalog:   catalog,
		ordering:  ordering,
		idemRepo:  idemRepo,
		logger:    logger,
	}
}

// RegisterCustomer регистрирует клиента.
func (s *StorefrontService) RegisterCustomer(ctx context.Context, req *RegisterCustomerRequest) (*RegisterCustomerResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	return withIdempotency(s, ctx, domain.IdempotentRegisterCustomer, req, func(ctx context.Context) (*RegisterCustomerResponse, error) {
		c, err := s.customers.Register(ctx, req.Name, req.Email)
		if err != nil {
			return nil, err
		}
		return &RegisterCustomerResponse{Customer: toCustomer(c)}, nil
	})
}

// GetCustomer возвращает клиента.
func (s *StorefrontService) GetCustomer(ctx context.Context, req *GetCustomerRequest) (*GetCustomerResponse, error) {
	if req == nil || req.CustomerID == "" {
		return nil, status.Error(codes.InvalidArgument, "customer_id is required")
	}
	c, err := s.customers.Get(ctx, req.CustomerID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetCustomerResponse{Customer: toCustomer(c)}, nil
}

// CreateProduct добавляет товар в каталог.
func (s *StorefrontService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*CreateProductResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	return withIdempotency(s, ctx, domain.IdempotentCreateProduct, req, func(ctx context.Context) (*CreateProductResponse, error) {
		p, err := s.catalog.CreateProduct(ctx, req.Name, req.PriceMinor, req.Quantity)
		if err != nil {
			return nil, err
		}
		return &CreateProductResponse{Product: toProduct(p)}, nil
	})
}

// GetProduct возвращает товар с текущим остатком.
func (s *StorefrontService) GetProduct(ctx context.Context, req *GetProductRequest) (*GetProductResponse, error) {
	if req == nil || req.ProductID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id is required")
	}
	p, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetProductResponse{Product: toProduct(p)}, nil
}

// PlaceOrder оформляет заказ.
func (s *StorefrontService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	return withIdempotency(s, ctx, domain.IdempotentPlaceOrder, req, func(ctx context.Context) (*PlaceOrderResponse, error) {
		order, err := s.ordering.PlaceOrder(ctx, req.CustomerID, toDomainLines(req.Items))
		if err != nil {
			return nil, err
		}
		return &PlaceOrderResponse{Order: toOrder(order)}, nil
	})
}

// GetOrder возвращает заказ.
func (s *StorefrontService) GetOrder(ctx context.Context, req *GetOrderRequest) (*GetOrderResponse, error) {
	if req == nil || req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}
	order, err := s.ordering.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetOrderResponse{Order: toOrder(order)}, nil
}

// ListOrders возвращает заказы клиента, новые первыми.
func (s *StorefrontService) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	if req == nil || req.CustomerID == "" {
		return nil, status.Error(codes.InvalidArgument, "customer_id is required")
	}
	if req.Limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must be >= 0")
	}
	orders, err := s.ordering.ListOrders(ctx, req.CustomerID, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &ListOrdersResponse{Orders: make([]Order, 0, len(orders))}
	for _, order := range orders {
		resp.Orders = append(resp.Orders, toOrder(order))
	}
	return resp, nil
}
