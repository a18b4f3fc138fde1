package customer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type fixture struct {
	svc       *RegistrationService
	customers domain.CustomerRepository
	outbox    *memory.OutboxRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	customers := memory.NewCustomerRepository()
	outbox := memory.NewOutboxRepository()
	svc := NewRegistrationService(customers,
		WithTransactor(memory.NewTransactor()),
		WithOutbox(outbox),
		WithMetrics(metrics.NewStorefrontMetricsWithRegisterer(prometheus.NewRegistry())),
	)
	return fixture{svc: svc, customers: customers, outbox: outbox}
}

func TestRegister_CreatesCustomerAndEvent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.Register(ctx, "Ann", "ann@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, c.ID)
	require.Equal(t, "Ann", c.Name)
	require.Equal(t, "ann@example.com", c.Email)

	stored, err := f.svc.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, c.ID, stored.ID)

	pending := f.outbox.AllPending()
	require.Len(t, pending, 1)
	require.Equal(t, domain.EventCustomerRegistered, pending[0].EventType)
	require.Equal(t, c.ID, pending[0].AggregateID)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "Ann", "ann@example.com")
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, "Another Ann", "ann@example.com")
	require.ErrorIs(t, err, domain.ErrDuplicateEmail)
	require.Len(t, f.outbox.AllPending(), 1, "rejected registration must not emit an event")
}

func TestRegister_EmailIsCaseSensitive(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "Ann", "ann@example.com")
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, "Ann", "ANN@example.com")
	require.NoError(t, err)
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	cases := []struct {
		name, email string
		want        error
	}{
		{"", "a@b.c", domain.ErrCustomerNameRequired},
		{"Ann", "", domain.ErrEmailRequired},
		{"Ann", "no-at-sign", domain.ErrEmailInvalid},
	}
	for _, tc := range cases {
		_, err := f.svc.Register(context.Background(), tc.name, tc.email)
		require.ErrorIs(t, err, tc.want)
	}
	require.Empty(t, f.outbox.AllPending())
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		dupes     int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Register(ctx, "Racer", "race@example.com")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrDuplicateEmail):
				dupes++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, succeeded)
	require.Equal(t, workers-1, dupes)
}

func TestRegister_StorageFailureIsWrapped(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	svc := NewRegistrationService(&failingCustomers{err: boom})

	_, err := svc.Register(context.Background(), "Ann", "ann@example.com")
	require.ErrorIs(t, err, boom)
	require.True(t, domain.IsStorageError(err))
}

func TestRegister_OutboxFailureRollsBackCustomer(t *testing.T) {
	t.Parallel()

	customers := memory.NewCustomerRepository()
	svc := NewRegistrationService(customers,
		WithTransactor(memory.NewTransactor()),
		WithOutbox(failingOutbox{}),
	)

	_, err := svc.Register(context.Background(), "Ann", "ann@example.com")
	require.True(t, domain.IsStorageError(err))

	_, err = customers.FindByEmail(context.Background(), "ann@example.com")
	require.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestGet_NotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrCustomerNotFound)

	_, err = f.svc.Get(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrCustomerRequired)
}

type failingCustomers struct {
	err error
}

func (f *failingCustomers) FindByEmail(context.Context, string) (domain.Customer, error) {
	return domain.Customer{}, f.err
}

func (f *failingCustomers) FindByID(context.Context, string) (domain.Customer, error) {
	return domain.Customer{}, f.err
}

func (f *failingCustomers) Create(context.Context, string, string) (domain.Customer, error) {
	return domain.Customer{}, f.err
}

type failingOutbox struct{}

func (failingOutbox) Enqueue(context.Context, domain.OutboxMessage) (domain.OutboxMessage, error) {
	return domain.OutboxMessage{}, errors.New("outbox table locked")
}

func (failingOutbox) PullPending(context.Context, int) ([]domain.OutboxMessage, error) {
	return nil, nil
}

func (failingOutbox) Stats(context.Context) (domain.OutboxStats, error) {
	return domain.OutboxStats{}, nil
}

func (failingOutbox) MarkSent(context.Context, string) error   { return nil }
func (failingOutbox) MarkFailed(context.Context, string) error { return nil }
