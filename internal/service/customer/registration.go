// Package customer регистрирует покупателей.
package customer

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Options задаёт необязательные зависимости RegistrationService.
type Options struct {
	Transactor domain.Transactor
	Outbox     domain.OutboxRepository
	Metrics    *metrics.StorefrontMetrics
	Logger     *log.Entry
}

// Option настраивает RegistrationService.
type Option func(*Options)

// WithTransactor объединяет создание клиента и запись события в одну транзакцию.
func WithTransactor(tx domain.Transactor) Option {
	return func(o *Options) { o.Transactor = tx }
}

// WithOutbox включает публикацию события customer.registered.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(o *Options) { o.Outbox = outbox }
}

// WithMetrics задаёт метрики.
func WithMetrics(m *metrics.StorefrontMetrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(o *Options) { o.Logger = logger }
}

// RegistrationService регистрирует клиентов с уникальным email.
type RegistrationService struct {
	customers domain.CustomerRepository
	tx        domain.Transactor
	outbox    domain.OutboxRepository
	metrics   *metrics.StorefrontMetrics
	logger    *log.Entry
}

// NewRegistrationService создаёт сервис регистрации.
func NewRegistrationService(customers domain.CustomerRepository, options ...Option) *RegistrationService {
	var opts Options
	for _, option := range options {
		option(&opts)
	}
	if opts.Transactor == nil {
		opts.Transactor = domain.NoTx{}
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "customer-registration")
	}

	return &RegistrationService{
		customers: customers,
		tx:        opts.Transactor,
		outbox:    opts.Outbox,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
}

// Register создаёт клиента. Занятый email возвращает ErrDuplicateEmail,
// в том числе когда конкурирующая регистрация успела раньше.
func (s *RegistrationService) Register(ctx context.Context, name, email string) (domain.Customer, error) {
	if err := domain.ValidateRegistration(name, email); err != nil {
		s.reject(err)
		return domain.Customer{}, err
	}

	var created domain.Customer
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		_, err := s.customers.FindByEmail(ctx, email)
		switch {
		case err == nil:
			return domain.ErrDuplicateEmail
		case !errors.Is(err, domain.ErrCustomerNotFound):
			return domain.WrapStorage("customers.find_by_email", err)
		}

		created, err = s.customers.Create(ctx, name, email)
		if err != nil {
			return domain.WrapStorage("customers.create", err)
		}

		if s.outbox == nil {
			return nil
		}
		msg, err := domain.NewCustomerRegisteredMessage(created)
		if err != nil {
			return err
		}
		if _, err := s.outbox.Enqueue(ctx, msg); err != nil {
			return domain.WrapStorage("outbox.enqueue", err)
		}
		return nil
	})
	if err != nil {
		s.reject(err)
		return domain.Customer{}, err
	}

	s.metrics.RecordCustomerRegistered()
	s.logger.WithField("customer_id", created.ID).Info("customer registered")
	return created, nil
}

// Get возвращает клиента или ErrCustomerNotFound.
func (s *RegistrationService) Get(ctx context.Context, id string) (domain.Customer, error) {
	if id == "" {
		return domain.Customer{}, domain.ErrCustomerRequired
	}
	c, err := s.customers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			return domain.Customer{}, fmt.Errorf("customer %s: %w", id, err)
		}
		return domain.Customer{}, domain.WrapStorage("customers.find_by_id", err)
	}
	return c, nil
}

func (s *RegistrationService) reject(err error) {
	reason := metrics.ReasonOf(err)
	s.metrics.RecordRegistrationRejected(reason)

	entry := s.logger.WithError(err).WithField("reason", reason)
	if domain.IsStorageError(err) {
		entry.Error("customer registration failed")
		return
	}
	entry.Info("customer registration rejected")
}
