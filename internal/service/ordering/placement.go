// Package ordering оформляет заказы: проверяет клиента и остатки,
// фиксирует заказ и списывает товар одной транзакцией.
package ordering

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const defaultListLimit = 50

// PlacementService оформляет заказы.
type PlacementService struct {
	customers domain.CustomerRepository
	products  domain.ProductRepository
	orders    domain.OrderRepository
	tx        domain.Transactor
	outbox    domain.OutboxRepository
	metrics   *metrics.StorefrontMetrics
	logger    *log.Entry
	now       func() time.Time
}

// NewPlacementService создаёт сервис оформления заказов.
func NewPlacementService(
	customers domain.CustomerRepository,
	products domain.ProductRepository,
	orders domain.OrderRepository,
	options ...Option,
) *PlacementService {
	var opts Options
	for _, option := range options {
		option(&opts)
	}
	if opts.Transactor == nil {
		opts.Transactor = domain.NoTx{}
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "order-placement")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &PlacementService{
		customers: customers,
		products:  products,
		orders:    orders,
		tx:        opts.Transactor,
		outbox:    opts.Outbox,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		now:       opts.Clock,
	}
}

// PlaceOrder оформляет заказ клиента.
//
// Клиент проверяется до обращения к каталогу. Повторяющиеся товары
// схлопываются в одну позицию. Ошибка на любом шаге не оставляет ни заказа,
// ни изменений остатков, ни события.
func (s *PlacementService) PlaceOrder(ctx context.Context, customerID string, lines []domain.OrderLine) (domain.Order, error) {
	done := s.metrics.PlacementStarted()
	defer done()

	order, err := s.placeOrder(ctx, customerID, lines)
	if err != nil {
		s.reject(customerID, err)
		return domain.Order{}, err
	}

	var units int64
	for _, item := range order.Items {
		units += item.Qty
	}
	s.metrics.RecordOrderPlaced(units)
	s.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"customer_id":  order.CustomerID,
		"amount_minor": order.AmountMinor,
		"items":        len(order.Items),
	}).Info("order placed")

	return order, nil
}

func (s *PlacementService) placeOrder(ctx context.Context, customerID string, lines []domain.OrderLine) (domain.Order, error) {
	if customerID == "" {
		return domain.Order{}, domain.ErrCustomerRequired
	}
	if err := domain.ValidateLines(lines); err != nil {
		return domain.Order{}, err
	}

	if _, err := s.customers.FindByID(ctx, customerID); err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			return domain.Order{}, fmt.Errorf("customer %s: %w", customerID, err)
		}
		return domain.Order{}, domain.WrapStorage("customers.find_by_id", err)
	}

	// Ошибку переполнения отдаём после проверки наличия товаров: ProductNotFound приоритетнее.
	aggregated, overflowErr := domain.AggregateLines(lines)

	var placed domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		found, err := s.products.FindAllByID(ctx, domain.ProductIDs(aggregated))
		if err != nil {
			return domain.WrapStorage("products.find_all_by_id", err)
		}

		byID := make(map[string]domain.Product, len(found))
		for _, p := range found {
			byID[p.ID] = p
		}
		if err := checkAvailability(aggregated, byID, overflowErr); err != nil {
			return err
		}

		order, err := s.buildOrder(customerID, aggregated, byID)
		if err != nil {
			return err
		}
		if err := s.orders.Create(ctx, order); err != nil {
			return domain.WrapStorage("orders.create", err)
		}

		if _, err := s.products.UpdateQuantity(ctx, aggregated); err != nil {
			return domain.WrapStorage("products.update_quantity", err)
		}

		if s.outbox != nil {
			msg, err := domain.NewOrderPlacedMessage(order)
			if err != nil {
				return err
			}
			if _, err := s.outbox.Enqueue(ctx, msg); err != nil {
				return domain.WrapStorage("outbox.enqueue", err)
			}
		}

		placed = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return placed, nil
}

// checkAvailability сначала ищет отсутствующие товары, затем нехватку остатка.
// overflowErr: запрошенное количество не поместилось в int64 при сложении строк.
func checkAvailability(lines []domain.OrderLine, byID map[string]domain.Product, overflowErr error) error {
	var missing []string
	for _, line := range lines {
		if _, ok := byID[line.ProductID]; !ok {
			missing = append(missing, line.ProductID)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, strings.Join(missing, ", "))
	}
	if overflowErr != nil {
		return overflowErr
	}

	for _, line := range lines {
		p := byID[line.ProductID]
		if p.Quantity < line.Qty {
			return fmt.Errorf("%w: product %s has %d, requested %d",
				domain.ErrInsufficientQuantity, p.ID, p.Quantity, line.Qty)
		}
	}
	return nil
}

func (s *PlacementService) buildOrder(customerID string, lines []domain.OrderLine, byID map[string]domain.Product) (domain.Order, error) {
	now := s.now().UTC()
	order := domain.Order{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Status:     domain.OrderStatusPlaced,
		Items:      make([]domain.OrderItem, 0, len(lines)),
		CreatedAt:  now,
	}
	for _, line := range lines {
		price := byID[line.ProductID].PriceMinor
		amount, ok := domain.LineAmount(line.Qty, price)
		if ok {
			order.AmountMinor, ok = domain.AddQty(order.AmountMinor, amount)
		}
		if !ok {
			return domain.Order{}, fmt.Errorf("%w: product %s, qty %d, price %d",
				domain.ErrAmountOverflow, line.ProductID, line.Qty, price)
		}
		order.Items = append(order.Items, domain.OrderItem{
			ID:         uuid.NewString(),
			ProductID:  line.ProductID,
			Qty:        line.Qty,
			PriceMinor: price,
			CreatedAt:  now,
		})
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errors.Join(errs...)
	}
	return order, nil
}

// GetOrder возвращает заказ или ErrOrderNotFound.
func (s *PlacementService) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	if id == "" {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return domain.Order{}, fmt.Errorf("order %s: %w", id, err)
		}
		return domain.Order{}, domain.WrapStorage("orders.get", err)
	}
	return order, nil
}

// ListOrders возвращает заказы клиента, новые первыми. limit <= 0 означает значение по умолчанию.
func (s *PlacementService) ListOrders(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	if customerID == "" {
		return nil, domain.ErrCustomerRequired
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	orders, err := s.orders.ListByCustomer(ctx, customerID, limit)
	if err != nil {
		return nil, domain.WrapStorage("orders.list_by_customer", err)
	}
	return orders, nil
}

func (s *PlacementService) reject(customerID string, err error) {
	reason := metrics.ReasonOf(err)
	s.metrics.RecordOrderRejected(reason)

	entry := s.logger.WithError(err).WithFields(log.Fields{
		"customer_id": customerID,
		"reason":      reason,
	})
	if domain.IsStorageError(err) {
		entry.Error("order placement failed")
		return
	}
	entry.Info("order placement rejected")
}
