package domain

import "context"

// CustomerRepository: справочник клиентов.
type CustomerRepository interface {
	// FindByEmail ищет клиента по точному совпадению email или возвращает ErrCustomerNotFound.
	FindByEmail(ctx context.Context, email string) (Customer, error)
	// FindByID возвращает клиента или ErrCustomerNotFound.
	FindByID(ctx context.Context, id string) (Customer, error)
	// Create выделяет идентификатор и сохраняет клиента.
	// Повторный email отклоняется хранилищем с ErrDuplicateEmail.
	Create(ctx context.Context, name, email string) (Customer, error)
}

// ProductRepository: каталог товаров и их остатков.
type ProductRepository interface {
	// FindByName возвращает товар по названию или ErrProductNotFound.
	FindByName(ctx context.Context, name string) (Product, error)
	// FindByID возвращает товар или ErrProductNotFound.
	FindByID(ctx context.Context, id string) (Product, error)
	// FindAllByID возвращает найденное подмножество товаров; отсутствующие id не считаются ошибкой.
	// Внутри транзакции строки блокируются до её завершения.
	FindAllByID(ctx context.Context, ids []string) ([]Product, error)
	// Create выделяет идентификатор и сохраняет товар. Дубликат названия даёт ErrDuplicateProductName.
	Create(ctx context.Context, name string, priceMinor, quantity int64) (Product, error)
	// UpdateQuantity списывает запрошенные количества одним пакетом и возвращает новые состояния.
	// Повторы id суммируются, отсутствующие id пропускаются.
	// Пакет, уводящий остаток ниже нуля, отклоняется целиком с ErrInsufficientQuantity.
	UpdateQuantity(ctx context.Context, lines []OrderLine) ([]Product, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет заказ вместе со всеми позициями как единое целое.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// ListByCustomer возвращает заказы клиента с опциональным ограничением на количество.
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]Order, error)
}

// Transactor выполняет fn в одной транзакции хранилища.
// Репозитории, вызванные с переданным ctx, участвуют в этой транзакции.
// Ошибка fn откатывает все изменения.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NoTx выполняет fn без транзакции. Подходит для хранилищ, где каждая операция атомарна сама по себе.
type NoTx struct{}

// WithinTx вызывает fn с исходным контекстом.
func (NoTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
