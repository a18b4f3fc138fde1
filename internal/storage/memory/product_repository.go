package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// productRepositoryInMemory: in-memory каталог. Уникальность названия и
// неотрицательный остаток проверяются здесь так же, как ограничениями схемы в PostgreSQL.
type productRepositoryInMemory struct {
	mu     sync.RWMutex
	items  map[string]domain.Product
	byName map[string]string
}

// NewProductRepository возвращает in-memory каталог товаров.
func NewProductRepository() domain.ProductRepository {
	return &productRepositoryInMemory{
		items:  make(map[string]domain.Product),
		byName: make(map[string]string),
	}
}

func (r *productRepositoryInMemory) FindByName(ctx context.Context, name string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[name]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return r.items[id], nil
}

func (r *productRepositoryInMemory) FindByID(ctx context.Context, id string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

func (r *productRepositoryInMemory) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(ids))
	result := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if product, ok := r.items[id]; ok {
			result = append(result, product)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *productRepositoryInMemory) Create(ctx context.Context, name string, priceMinor, quantity int64) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	if priceMinor < 0 {
		return domain.Product{}, domain.ErrItemPriceInvalid
	}
	if quantity < 0 {
		return domain.Product{}, domain.ErrProductQtyNegative
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return domain.Product{}, domain.ErrDuplicateProductName
	}

	now := time.Now().UTC()
	product := domain.Product{
		ID:         uuid.NewString(),
		Name:       name,
		PriceMinor: priceMinor,
		Quantity:   quantity,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.items[product.ID] = product
	r.byName[name] = product.ID

	recordUndo(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.items, product.ID)
		delete(r.byName, name)
	})

	return product, nil
}

// UpdateQuantity применяет пакет списаний целиком или не применяет ничего.
func (r *productRepositoryInMemory) UpdateQuantity(ctx context.Context, lines []domain.OrderLine) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	adjustments, err := domain.AggregateLines(lines)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	previous := make([]domain.Product, 0, len(adjustments))
	updated := make([]domain.Product, 0, len(adjustments))
	for _, adj := range adjustments {
		product, ok := r.items[adj.ProductID]
		if !ok {
			continue
		}
		if product.Quantity-adj.Qty < 0 {
			return nil, domain.ErrInsufficientQuantity
		}
		previous = append(previous, product)
		product.Quantity -= adj.Qty
		product.UpdatedAt = now
		updated = append(updated, product)
	}

	for _, product := range updated {
		r.items[product.ID] = product
	}

	recordUndo(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, product := range previous {
			r.items[product.ID] = product
		}
	})

	return updated, nil
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
