// Package catalog управляет товарами каталога.
package catalog

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Service создаёт и читает товары.
type Service struct {
	products domain.ProductRepository
	metrics  *metrics.StorefrontMetrics
	logger   *log.Entry
}

// NewService создаёт сервис каталога. metrics может быть nil.
func NewService(products domain.ProductRepository, m *metrics.StorefrontMetrics, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog")
	}
	return &Service{products: products, metrics: m, logger: logger}
}

// CreateProduct добавляет товар с начальным остатком.
func (s *Service) CreateProduct(ctx context.Context, name string, priceMinor, quantity int64) (domain.Product, error) {
	if err := domain.ValidateNewProduct(name, priceMinor, quantity); err != nil {
		s.reject(name, err)
		return domain.Product{}, err
	}

	_, err := s.products.FindByName(ctx, name)
	switch {
	case err == nil:
		err = domain.ErrDuplicateProductName
	case errors.Is(err, domain.ErrProductNotFound):
		err = nil
	default:
		err = domain.WrapStorage("products.find_by_name", err)
	}
	if err != nil {
		s.reject(name, err)
		return domain.Product{}, err
	}

	p, err := s.products.Create(ctx, name, priceMinor, quantity)
	if err != nil {
		err = domain.WrapStorage("products.create", err)
		s.reject(name, err)
		return domain.Product{}, err
	}

	s.metrics.RecordProductCreated()
	s.logger.WithFields(log.Fields{
		"product_id": p.ID,
		"quantity":   p.Quantity,
	}).Info("product created")
	return p, nil
}

// GetProduct возвращает товар или ErrProductNotFound.
func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if id == "" {
		return domain.Product{}, domain.ErrProductIDRequired
	}
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return domain.Product{}, fmt.Errorf("product %s: %w", id, err)
		}
		return domain.Product{}, domain.WrapStorage("products.find_by_id", err)
	}
	return p, nil
}

func (s *Service) reject(name string, err error) {
	reason := metrics.ReasonOf(err)
	s.metrics.RecordProductRejected(reason)

	entry := s.logger.WithError(err).WithFields(log.Fields{
		"product_name": name,
		"reason":       reason,
	})
	if domain.IsStorageError(err) {
		entry.Error("product creation failed")
		return
	}
	entry.Info("product creation rejected")
}
