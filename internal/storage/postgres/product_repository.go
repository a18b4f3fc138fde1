package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const productColumns = `id, name, price_minor, quantity, created_at, updated_at`

type productRepository struct {
	store *Store
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{store: store}
}

func (r *productRepository) FindByName(ctx context.Context, name string) (domain.Product, error) {
	return r.findOne(ctx, `SELECT `+productColumns+` FROM products WHERE name = $1`, name)
}

func (r *productRepository) FindByID(ctx context.Context, id string) (domain.Product, error) {
	return r.findOne(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

// FindAllByID внутри транзакции берёт строки FOR UPDATE в порядке id,
// поэтому конкурентные оформления одних и тех же товаров не взаимоблокируются.
func (r *productRepository) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1) ORDER BY id`
	if _, inTx := txFromContext(ctx); inTx {
		query += ` FOR UPDATE`
	}

	rows, err := r.store.conn(ctx).QueryContext(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("select products by id: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

func (r *productRepository) Create(ctx context.Context, name string, priceMinor, quantity int64) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now().UTC()
	product := domain.Product{
		ID:         uuid.NewString(),
		Name:       name,
		PriceMinor: priceMinor,
		Quantity:   quantity,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := r.store.conn(ctx).ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, product.ID, product.Name, product.PriceMinor, product.Quantity, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Product{}, domain.ErrDuplicateProductName
		}
		if checkErr := productCheckError(err); checkErr != nil {
			return domain.Product{}, fmt.Errorf("insert product: %w", checkErr)
		}
		return domain.Product{}, fmt.Errorf("insert product: %w", err)
	}

	return product, nil
}

// UpdateQuantity вычитает количества одним пакетом. Нижнюю границу остатка
// проверяет CHECK-ограничение таблицы, его нарушение откатывает весь пакет.
func (r *productRepository) UpdateQuantity(ctx context.Context, lines []domain.OrderLine) ([]domain.Product, error) {
	adjustments, err := domain.AggregateLines(lines)
	if err != nil {
		return nil, err
	}
	sort.Slice(adjustments, func(i, j int) bool { return adjustments[i].ProductID < adjustments[j].ProductID })

	updated := make([]domain.Product, 0, len(adjustments))
	err = r.store.WithinTx(ctx, func(ctx context.Context) error {
		q := r.store.conn(ctx)
		now := time.Now().UTC()
		for _, adj := range adjustments {
			row := q.QueryRowContext(ctx, `
				UPDATE products
				SET quantity = quantity - $2,
				    updated_at = $3
				WHERE id = $1
				RETURNING `+productColumns,
				adj.ProductID, adj.Qty, now,
			)
			p, err := scanProduct(row)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					continue
				}
				if isCheckViolation(err) && pgConstraintName(err) == constraintProductQuantity {
					return domain.ErrInsufficientQuantity
				}
				return fmt.Errorf("update product quantity: %w", err)
			}
			updated = append(updated, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *productRepository) findOne(ctx context.Context, query, arg string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	p, err := scanProduct(r.store.conn(ctx).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, err
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Name, &p.PriceMinor, &p.Quantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Product{}, fmt.Errorf("scan product: %w", err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
