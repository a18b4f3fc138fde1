package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type customerRepository struct {
	store *Store
}

// NewCustomerRepository создаёт PostgreSQL-реализацию CustomerRepository.
func NewCustomerRepository(store *Store) domain.CustomerRepository {
	return &customerRepository{store: store}
}

func (r *customerRepository) FindByEmail(ctx context.Context, email string) (domain.Customer, error) {
	return r.findOne(ctx, `
		SELECT id, name, email, created_at
		FROM customers
		WHERE email = $1
	`, email)
}

func (r *customerRepository) FindByID(ctx context.Context, id string) (domain.Customer, error) {
	return r.findOne(ctx, `
		SELECT id, name, email, created_at
		FROM customers
		WHERE id = $1
	`, id)
}

func (r *customerRepository) Create(ctx context.Context, name, email string) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	customer := domain.Customer{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}

	_, err := r.store.conn(ctx).ExecContext(ctx, `
		INSERT INTO customers (id, name, email, created_at)
		VALUES ($1,$2,$3,$4)
	`, customer.ID, customer.Name, customer.Email, customer.CreatedAt)
	if err != nil {
		// id генерируется здесь, так что конфликт возможен только по email.
		if isUniqueViolation(err) {
			return domain.Customer{}, domain.ErrDuplicateEmail
		}
		return domain.Customer{}, fmt.Errorf("insert customer: %w", err)
	}

	return customer, nil
}

func (r *customerRepository) findOne(ctx context.Context, query string, arg string) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var c domain.Customer
	err := r.store.conn(ctx).QueryRowContext(ctx, query, arg).Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
