package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func orderScope(key string) domain.IdempotencyScope {
	return domain.IdempotencyScope{Operation: domain.IdempotentPlaceOrder, Key: key}
}

func TestIdempotencyRepository_PostgresCreateGetAndMarkDone(t *testing.T) {
	repo := NewIdempotencyRepository(openPostgresStoreForIntegrationTest(t))
	ctx := context.Background()
	ttl := time.Now().UTC().Add(2 * time.Hour).Round(time.Second)

	created, err := repo.CreateProcessing(ctx, orderScope("order-done"), "req-hash-1", ttl)
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusProcessing, created.Status)

	require.NoError(t, repo.MarkDone(ctx, orderScope("order-done"), []byte(`{"order":{"id":"o1"}}`), 0))

	got, err := repo.Get(ctx, orderScope("order-done"))
	require.NoError(t, err)
	require.Equal(t, orderScope("order-done"), got.Scope)
	require.Equal(t, "req-hash-1", got.RequestHash)
	require.Equal(t, domain.IdempotencyStatusDone, got.Status)
	require.JSONEq(t, `{"order":{"id":"o1"}}`, string(got.ResponseBody))
	require.True(t, got.TTLAt.Equal(ttl), "ttl mismatch: expected %s, got %s", ttl, got.TTLAt)
}

func TestIdempotencyRepository_PostgresConflictIsScopedByOperation(t *testing.T) {
	repo := NewIdempotencyRepository(openPostgresStoreForIntegrationTest(t))
	ctx := context.Background()
	ttl := time.Now().UTC().Add(time.Hour)

	_, err := repo.CreateProcessing(ctx, orderScope("shared"), "req-hash-a", ttl)
	require.NoError(t, err)

	existing, err := repo.CreateProcessing(ctx, orderScope("shared"), "req-hash-a", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)
	require.Equal(t, domain.IdempotencyStatusProcessing, existing.Status)

	_, err = repo.CreateProcessing(ctx, orderScope("shared"), "req-hash-b", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)

	customerScope := domain.IdempotencyScope{Operation: domain.IdempotentRegisterCustomer, Key: "shared"}
	_, err = repo.CreateProcessing(ctx, customerScope, "req-hash-b", ttl)
	require.NoError(t, err)
}

func TestIdempotencyRepository_PostgresConflictKeepsTransactionUsable(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewIdempotencyRepository(store)
	ctx := context.Background()

	_, err := repo.CreateProcessing(ctx, orderScope("in-tx"), "h", time.Time{})
	require.NoError(t, err)

	err = store.WithinTx(ctx, func(ctx context.Context) error {
		_, err := repo.CreateProcessing(ctx, orderScope("in-tx"), "h", time.Time{})
		require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)
		_, err = repo.CreateProcessing(ctx, orderScope("after-conflict"), "h", time.Time{})
		return err
	})
	require.NoError(t, err)

	_, err = repo.Get(ctx, orderScope("after-conflict"))
	require.NoError(t, err)
}

func TestIdempotencyRepository_PostgresDeleteReleasesKey(t *testing.T) {
	repo := NewIdempotencyRepository(openPostgresStoreForIntegrationTest(t))
	ctx := context.Background()

	_, err := repo.CreateProcessing(ctx, orderScope("retry"), "h", time.Time{})
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, orderScope("retry")))

	_, err = repo.Get(ctx, orderScope("retry"))
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
	require.ErrorIs(t, repo.MarkFailed(ctx, orderScope("retry"), nil, 14), domain.ErrIdempotencyKeyNotFound)

	_, err = repo.CreateProcessing(ctx, orderScope("retry"), "h", time.Time{})
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, orderScope("never-created")))
}

func TestIdempotencyRepository_PostgresDeleteExpiredPerOperation(t *testing.T) {
	repo := NewIdempotencyRepository(openPostgresStoreForIntegrationTest(t))
	ctx := context.Background()
	now := time.Now().UTC()

	for i, ttl := range []time.Duration{-5 * time.Minute, -4 * time.Minute, -3 * time.Minute, time.Hour} {
		_, err := repo.CreateProcessing(ctx, orderScope(string(rune('a'+i))), "h", now.Add(ttl))
		require.NoError(t, err)
	}
	productScope := domain.IdempotencyScope{Operation: domain.IdempotentCreateProduct, Key: "a"}
	_, err := repo.CreateProcessing(ctx, productScope, "h", now.Add(-time.Hour))
	require.NoError(t, err)

	removed, err := repo.DeleteExpired(ctx, domain.IdempotentPlaceOrder, now, 2)
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	removed, err = repo.DeleteExpired(ctx, domain.IdempotentPlaceOrder, now, 0)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = repo.Get(ctx, orderScope("d"))
	require.NoError(t, err)
	_, err = repo.Get(ctx, productScope)
	require.NoError(t, err, "expired keys of other operations are swept separately")

	_, err = repo.DeleteExpired(ctx, "GetOrder", now, 0)
	require.ErrorIs(t, err, domain.ErrIdempotencyOperationUnknown)
}
