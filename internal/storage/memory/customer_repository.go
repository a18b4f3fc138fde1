package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// customerRepositoryInMemory держит клиентов и индекс по email, который
// играет роль уникального ограничения.
type customerRepositoryInMemory struct {
	mu      sync.RWMutex
	items   map[string]domain.Customer
	byEmail map[string]string
}

// NewCustomerRepository возвращает in-memory справочник клиентов.
func NewCustomerRepository() domain.CustomerRepository {
	return &customerRepositoryInMemory{
		items:   make(map[string]domain.Customer),
		byEmail: make(map[string]string),
	}
}

func (r *customerRepositoryInMemory) FindByEmail(ctx context.Context, email string) (domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return r.items[id], nil
}

func (r *customerRepositoryInMemory) FindByID(ctx context.Context, id string) (domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	customer, ok := r.items[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer, nil
}

func (r *customerRepositoryInMemory) Create(ctx context.Context, name, email string) (domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[email]; exists {
		return domain.Customer{}, domain.ErrDuplicateEmail
	}

	customer := domain.Customer{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	r.items[customer.ID] = customer
	r.byEmail[email] = customer.ID

	recordUndo(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.items, customer.ID)
		delete(r.byEmail, email)
	})

	return customer, nil
}

var _ domain.CustomerRepository = (*customerRepositoryInMemory)(nil)
